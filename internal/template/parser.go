package template

import "fmt"

// ParseError is returned for any malformed template or expression; it
// carries the source span of the offending text, per spec.md §4.1.
type ParseError struct {
	Span Span
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at %d:%d: %s", e.Span.Start, e.Span.End, e.Msg)
}

type parser struct {
	toks []token
	pos  int
}

func parseExpr(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &ParseError{Span: p.cur().span, Msg: "unexpected trailing input in expression"}
	}
	return e, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, &ParseError{Span: p.cur().span, Msg: fmt.Sprintf("expected %s", what)}
	}
	return p.advance(), nil
}

// parsePipe parses `primary ('|' call)*`. Pipe lowers at construction time by
// wrapping the accumulated left-hand expr into each ExprPipe node, matching
// spec.md §3 ("Pipe lowers to a call whose last positional argument is left").
func (p *parser) parsePipe() (*Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPipe {
		start := left.Span.Start
		p.advance()
		nameTok, err := p.expect(tokIdent, "function name after '|'")
		if err != nil {
			return nil, err
		}
		call, err := p.parseCallArgs(nameTok.s, nameTok.span.Start)
		if err != nil {
			return nil, err
		}
		left = &Expr{
			Kind:    ExprPipe,
			Span:    Span{start, p.toks[p.pos-1].span.End},
			PipeSrc: left,
			PipeTo:  call,
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (*Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNull:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitNull}}, nil
	case tokTrue:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitBool, B: true}}, nil
	case tokFalse:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitBool, B: false}}, nil
	case tokInt:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitInt, I: t.i}}, nil
	case tokFloat:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitFloat, F: t.f}}, nil
	case tokString:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitString, S: t.s}}, nil
	case tokBytes:
		p.advance()
		return &Expr{Kind: ExprLiteral, Span: t.span, Lit: Lit{Kind: LitBytes, S: t.bytes}}, nil
	case tokLBracket:
		return p.parseArray()
	case tokLBrace:
		return p.parseObject()
	case tokIdent:
		p.advance()
		if p.cur().kind == tokLParen {
			return p.parseCallArgsAsExpr(t.s, t.span.Start)
		}
		return &Expr{Kind: ExprField, Span: t.span, Field: t.s}, nil
	default:
		return nil, &ParseError{Span: t.span, Msg: "expected a literal, field, array, object, or function call"}
	}
}

func (p *parser) parseArray() (*Expr, error) {
	start := p.cur().span.Start
	p.advance() // '['
	var elems []*Expr
	for p.cur().kind != tokRBracket {
		e, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	end, err := p.expect(tokRBracket, "']'")
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprArray, Span: Span{start, end.span.End}, Elems: elems}, nil
}

func (p *parser) parseObject() (*Expr, error) {
	start := p.cur().span.Start
	p.advance() // '{'
	var pairs []ObjectPair
	for p.cur().kind != tokRBrace {
		key, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, ObjectPair{Key: key, Value: val})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	end, err := p.expect(tokRBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprObject, Span: Span{start, end.span.End}, Pairs: dedupPairs(pairs)}, nil
}

// dedupPairs implements "duplicate keys collapse with last-write-wins" for
// object literals whose keys are plain string/field literals; keys that are
// themselves dynamic expressions cannot be deduplicated until evaluation and
// are left as-is, matching the evaluator's responsibility noted in ast.go.
func dedupPairs(pairs []ObjectPair) []ObjectPair {
	seen := make(map[string]int)
	order := make([]ObjectPair, 0, len(pairs))
	for _, pr := range pairs {
		k, ok := staticKey(pr.Key)
		if !ok {
			order = append(order, pr)
			continue
		}
		if i, exists := seen[k]; exists {
			order[i] = pr
			continue
		}
		seen[k] = len(order)
		order = append(order, pr)
	}
	return order
}

func staticKey(e *Expr) (string, bool) {
	if e.Kind == ExprLiteral && e.Lit.Kind == LitString {
		return e.Lit.S, true
	}
	if e.Kind == ExprField {
		return e.Field, true
	}
	return "", false
}

func (p *parser) parseCallArgsAsExpr(name string, start int) (*Expr, error) {
	call, err := p.parseCallArgs(name, start)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprCall, Span: Span{start, p.toks[p.pos-1].span.End}, Call: call}, nil
}

func (p *parser) parseCallArgs(name string, start int) (*FunctionCall, error) {
	if _, err := p.expect(tokLParen, "'(' to open function call"); err != nil {
		return nil, err
	}
	call := &FunctionCall{Name: name}
	seenKeyword := false
	for p.cur().kind != tokRParen {
		if p.cur().kind == tokIdent && p.peekIsEq() {
			kwTok := p.advance()
			p.advance() // '='
			val, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			call.Keyword = append(call.Keyword, KeywordArg{Name: kwTok.s, Value: val})
			seenKeyword = true
		} else {
			if seenKeyword {
				return nil, &ParseError{Span: p.cur().span, Msg: "positional argument after keyword argument"}
			}
			val, err := p.parsePipe()
			if err != nil {
				return nil, err
			}
			call.Positional = append(call.Positional, val)
		}
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, "')' to close function call"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) peekIsEq() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].kind == tokEq
}

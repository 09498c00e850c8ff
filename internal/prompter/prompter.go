// Package prompter implements the interactive Prompter interface of
// spec.md §6: free-text prompts (optionally masked) and single-select
// choices, as consumed by internal/functions' prompt/choose built-ins.
// The CLI implementation upgrades the teacher's bufio.NewReader-based
// promptInput (cmd/devshell/executor.go) to huh's form widgets; a stdin
// fallback keeps the teacher's original technique for non-interactive
// terminals (piped input, CI) where huh's TTY-driven forms cannot run.
package prompter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"slumber/internal/slumbererr"
)

// CLI prompts via huh forms when stdin is a terminal, falling back to a
// plain line-read otherwise.
type CLI struct {
	in  io.Reader
	out io.Writer
}

// New returns a CLI prompter reading from stdin and writing prompts to
// stderr, matching the teacher's promptInput convention.
func New() *CLI {
	return &CLI{in: os.Stdin, out: os.Stderr}
}

// NewWithIO returns a CLI prompter over explicit streams, for tests.
func NewWithIO(in io.Reader, out io.Writer) *CLI {
	return &CLI{in: in, out: out}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Prompt implements functions.Prompter: free-text input, optionally with a
// default and optionally masked (sensitive values like passwords/tokens).
func (c *CLI) Prompt(ctx context.Context, message string, def *string, sensitive bool) (string, error) {
	if isTerminal(c.in) {
		return c.promptHuh(message, def, sensitive)
	}
	return c.promptStdin(message, def)
}

func (c *CLI) promptHuh(message string, def *string, sensitive bool) (string, error) {
	value := ""
	if def != nil {
		value = *def
	}
	input := huh.NewInput().Title(message).Value(&value)
	if sensitive {
		input = input.EchoMode(huh.EchoModePassword)
	}
	form := huh.NewForm(huh.NewGroup(input))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	if value == "" && def != nil {
		return *def, nil
	}
	return value, nil
}

// promptStdin is the teacher's bufio-line-read technique, used when stdin
// isn't a TTY huh can drive (piped input, scripted runs).
func (c *CLI) promptStdin(message string, def *string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", message)
	reader := bufio.NewReader(c.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		if def != nil {
			return *def, nil
		}
		return "", fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if def != nil {
			return *def, nil
		}
		return "", fmt.Errorf("%w: empty reply for %q", slumbererr.ErrPromptNoReply, message)
	}
	return line, nil
}

// Choose implements functions.Prompter: single-select among options.
func (c *CLI) Choose(ctx context.Context, message string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("%w: no options to choose from for %q", slumbererr.ErrPromptNoReply, message)
	}
	if isTerminal(c.in) {
		return c.chooseHuh(message, options)
	}
	return c.chooseStdin(message, options)
}

func (c *CLI) chooseHuh(message string, options []string) (string, error) {
	selected := options[0]
	huhOptions := make([]huh.Option[string], len(options))
	for i, o := range options {
		huhOptions[i] = huh.NewOption(o, o)
	}
	sel := huh.NewSelect[string]().Title(message).Options(huhOptions...).Value(&selected)
	form := huh.NewForm(huh.NewGroup(sel))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	return selected, nil
}

func (c *CLI) chooseStdin(message string, options []string) (string, error) {
	fmt.Fprintf(c.out, "%s\n", message)
	for i, o := range options {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, o)
	}
	fmt.Fprintf(c.out, "choice: ")

	reader := bufio.NewReader(c.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	line = strings.TrimSpace(line)

	for _, o := range options {
		if o == line {
			return o, nil
		}
	}
	for i, o := range options {
		if fmt.Sprintf("%d", i+1) == line {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of the offered options", slumbererr.ErrPromptNoReply, line)
}

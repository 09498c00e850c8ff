// Package events implements the event-queue side of spec.md §5/§9: a
// single-producer-many-reader mailbox the core only ever writes into. The
// mailbox itself lives inside the (out-of-scope) UI collaborator; what the
// core owns is the Emitter interface and the concrete event types it emits
// at each stage of a request's lifecycle, plus a small in-process mailbox
// implementation usable by the CLI and by tests standing in for the TUI.
package events

import (
	"time"

	"slumber/internal/model"
)

// Kind identifies which Event variant is populated.
type Kind int

const (
	KindRequestStarted Kind = iota
	KindRequestCompleted
	KindRequestFailed
	KindUIStateChanged
)

// Event is a tagged union of everything the core reports to its UI
// collaborator. Only the field matching Kind is populated.
type Event struct {
	Kind Kind
	Time time.Time

	RequestStarted   *RequestStarted
	RequestCompleted *RequestCompleted
	RequestFailed    *RequestFailed
	UIStateChanged   *UIStateChanged
}

// RequestStarted reports that a build+send cycle has begun for a recipe.
type RequestStarted struct {
	RecipeID  model.RecipeId
	ProfileID *model.ProfileId
}

// RequestCompleted reports a successfully persisted exchange.
type RequestCompleted struct {
	Exchange *model.Exchange
}

// RequestFailed reports a build or send failure; Err is the underlying
// error's message, not the error itself, so Event stays a plain value type
// that can cross a channel without callers needing access to internal
// error types.
type RequestFailed struct {
	RecipeID  model.RecipeId
	ProfileID *model.ProfileId
	Err       string
}

// UIStateChanged reports a ui_state_v2 write, so a TUI collaborator that
// isn't the writer (e.g. a second pane) can react.
type UIStateChanged struct {
	KeyType string
	Key     string
	Value   string
}

// Emitter is the interface the core depends on; it never reads events back,
// only writes (spec.md §5: "the core never reads it, it only emits into it").
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards every event. The default when no UI collaborator is
// attached (e.g. a one-shot CLI invocation).
type NopEmitter struct{}

// Emit implements Emitter by discarding ev.
func (NopEmitter) Emit(Event) {}

// Mailbox is a single-producer-many-reader fan-out: Emit never blocks on a
// slow reader — each registered reader gets its own buffered channel, and a
// full channel drops the event rather than stalling the producer.
type Mailbox struct {
	readers []chan Event
}

// NewMailbox returns an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Subscribe registers a new reader with the given buffer size and returns
// its channel. The channel is never closed by Emit; callers drain it for as
// long as they care to listen.
func (m *Mailbox) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	m.readers = append(m.readers, ch)
	return ch
}

// Emit implements Emitter: fan the event out to every subscriber,
// non-blocking.
func (m *Mailbox) Emit(ev Event) {
	for _, ch := range m.readers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// RequestStartedEvent builds a KindRequestStarted Event with the given now.
func RequestStartedEvent(now time.Time, recipe model.RecipeId, profile *model.ProfileId) Event {
	return Event{
		Kind:           KindRequestStarted,
		Time:           now,
		RequestStarted: &RequestStarted{RecipeID: recipe, ProfileID: profile},
	}
}

// RequestCompletedEvent builds a KindRequestCompleted Event.
func RequestCompletedEvent(now time.Time, ex *model.Exchange) Event {
	return Event{
		Kind:             KindRequestCompleted,
		Time:             now,
		RequestCompleted: &RequestCompleted{Exchange: ex},
	}
}

// RequestFailedEvent builds a KindRequestFailed Event.
func RequestFailedEvent(now time.Time, recipe model.RecipeId, profile *model.ProfileId, err error) Event {
	return Event{
		Kind: KindRequestFailed,
		Time: now,
		RequestFailed: &RequestFailed{
			RecipeID:  recipe,
			ProfileID: profile,
			Err:       err.Error(),
		},
	}
}

// UIStateChangedEvent builds a KindUIStateChanged Event.
func UIStateChangedEvent(now time.Time, keyType, key, value string) Event {
	return Event{
		Kind:           KindUIStateChanged,
		Time:           now,
		UIStateChanged: &UIStateChanged{KeyType: keyType, Key: key, Value: value},
	}
}

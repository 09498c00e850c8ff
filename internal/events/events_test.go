package events

import (
	"errors"
	"testing"
	"time"

	"slumber/internal/model"
)

func TestMailboxFansOutToAllSubscribers(t *testing.T) {
	mb := NewMailbox()
	a := mb.Subscribe(1)
	b := mb.Subscribe(1)

	ev := RequestStartedEvent(time.Now(), model.RecipeId("r1"), nil)
	mb.Emit(ev)

	select {
	case got := <-a:
		if got.Kind != KindRequestStarted {
			t.Errorf("a: kind = %v", got.Kind)
		}
	default:
		t.Error("subscriber a got nothing")
	}
	select {
	case got := <-b:
		if got.Kind != KindRequestStarted {
			t.Errorf("b: kind = %v", got.Kind)
		}
	default:
		t.Error("subscriber b got nothing")
	}
}

func TestMailboxDropsOnFullBuffer(t *testing.T) {
	mb := NewMailbox()
	ch := mb.Subscribe(1)

	mb.Emit(RequestStartedEvent(time.Now(), "r1", nil))
	mb.Emit(RequestStartedEvent(time.Now(), "r2", nil)) // dropped, buffer full

	got := <-ch
	if got.RequestStarted.RecipeID != "r1" {
		t.Errorf("expected the first event to survive, got %+v", got.RequestStarted)
	}
	select {
	case extra := <-ch:
		t.Errorf("expected no second event, got %+v", extra)
	default:
	}
}

func TestNopEmitterDiscardsEvents(t *testing.T) {
	var e Emitter = NopEmitter{}
	e.Emit(RequestFailedEvent(time.Now(), "r1", nil, errors.New("boom")))
}

func TestRequestFailedEventCarriesMessage(t *testing.T) {
	ev := RequestFailedEvent(time.Now(), "r1", nil, errors.New("boom"))
	if ev.RequestFailed.Err != "boom" {
		t.Errorf("Err = %q", ev.RequestFailed.Err)
	}
}

package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherInvokesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventLeadCreated, func(_ context.Context, e Event) error {
		got = append(got, e.BuyerID)
		return nil
	})
	d.Subscribe(EventLeadUpdated, func(_ context.Context, e Event) error {
		t.Fatal("handler for different event type must not fire")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventLeadCreated, BuyerID: "b1"}); err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if len(got) != 1 || got[0] != "b1" {
		t.Fatalf("expected one invocation for b1, got %v", got)
	}
}

func TestDispatcherContinuesPastFailingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()

	invoked := false
	d.Subscribe(EventLeadDeleted, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventLeadDeleted, func(context.Context, Event) error {
		invoked = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventLeadDeleted})
	if err == nil {
		t.Fatal("expected joined handler error")
	}
	if !invoked {
		t.Fatal("second handler must run despite first failing")
	}
}

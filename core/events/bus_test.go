package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBus_ExactMatch(t *testing.T) {
	b := NewBus(zerolog.Nop())
	var got []Event
	b.Subscribe(ServiceExported, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	b.Publish(context.Background(), Event{Name: ServiceExported, ServiceKey: "demo.Echo", At: time.Now()})
	b.Publish(context.Background(), Event{Name: ServiceUnexported, ServiceKey: "demo.Echo"})

	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	if got[0].ServiceKey != "demo.Echo" {
		t.Errorf("ServiceKey = %s", got[0].ServiceKey)
	}
}

func TestBus_Wildcard(t *testing.T) {
	b := NewBus(zerolog.Nop())
	count := 0
	b.Subscribe("*", func(context.Context, Event) error {
		count++
		return nil
	})

	b.Publish(context.Background(), Event{Name: ServiceExported})
	b.Publish(context.Background(), Event{Name: ServiceUnexported})

	if count != 2 {
		t.Errorf("wildcard handler called %d times, want 2", count)
	}
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	b := NewBus(zerolog.Nop())
	delivered := false
	b.Subscribe(ServiceExported, func(context.Context, Event) error {
		return fmt.Errorf("observer failure")
	})
	b.Subscribe(ServiceExported, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	b.Publish(context.Background(), Event{Name: ServiceExported})
	if !delivered {
		t.Error("later handler should still run after an earlier error")
	}
}

func TestBus_HasSubscribers(t *testing.T) {
	b := NewBus(zerolog.Nop())
	if b.HasSubscribers(ServiceExported) {
		t.Error("empty bus should have no subscribers")
	}
	b.Subscribe(ServiceExported, func(context.Context, Event) error { return nil })
	if !b.HasSubscribers(ServiceExported) {
		t.Error("HasSubscribers should see exact subscription")
	}
	if b.HasSubscribers(ServiceUnexported) {
		t.Error("HasSubscribers should not match other events")
	}
	b.Subscribe("*", func(context.Context, Event) error { return nil })
	if !b.HasSubscribers(ServiceUnexported) {
		t.Error("HasSubscribers should match wildcard")
	}
}

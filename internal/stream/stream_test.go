package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	evt := Event{Type: TypeBidAccepted, CropID: "c1", BidderID: "b1", Price: 100, Timestamp: time.Now().UTC()}
	s.Publish(evt)

	select {
	case got := <-ch:
		if got.CropID != "c1" || got.Type != TypeBidAccepted {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after the last subscriber left must not block.
	s.Publish(Event{Type: TypeAuctionClosed, CropID: "c1"})
}

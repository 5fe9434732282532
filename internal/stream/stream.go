// Package stream fan-outs auction events to in-process subscribers, feeding
// the SSE endpoint that replaces the old portal's bid polling.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event types published on the feed.
const (
	TypeBidAccepted   = "bid_accepted"
	TypeAuctionClosed = "auction_closed"
)

// Event describes a bid acceptance or an auction close.
type Event struct {
	Type      string    `json:"type"`
	CropID    string    `json:"crop_id"`
	BidderID  string    `json:"bidder_id,omitempty"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

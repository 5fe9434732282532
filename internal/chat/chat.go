// Package chat is the messaging-store collaborator: append-only crop-scoped
// messages between a farmer and the auction winner.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"harvestbid.org/internal/ids"
)

var ErrInvalidInput = errors.New("chat: invalid input")

// Message is one chat line between the two parties of a closed auction.
type Message struct {
	ID         string    `json:"id"`
	CropID     string    `json:"crop_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"message"`
	SentAt     time.Time `json:"timestamp"`

	// Enriched at read time from the user directory.
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

// Store is the messaging repository. Ordering is per crop, time ascending.
type Store interface {
	AppendMessage(ctx context.Context, m *Message) error
	MessagesByCrop(ctx context.Context, cropID string) ([]Message, error)
	DeleteMessagesByCrop(ctx context.Context, cropID string) error
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu     sync.RWMutex
	byCrop map[string][]Message
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty message store.
func NewInMemory() *InMemory {
	return &InMemory{byCrop: make(map[string][]Message)}
}

func (s *InMemory) AppendMessage(ctx context.Context, m *Message) error {
	if m == nil || m.CropID == "" || m.SenderID == "" || m.ReceiverID == "" {
		return ErrInvalidInput
	}
	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" {
		return ErrInvalidInput
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCrop[m.CropID] = append(s.byCrop[m.CropID], *m)
	return nil
}

func (s *InMemory) MessagesByCrop(ctx context.Context, cropID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]Message(nil), s.byCrop[cropID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	return msgs, nil
}

func (s *InMemory) DeleteMessagesByCrop(ctx context.Context, cropID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byCrop, cropID)
	return nil
}

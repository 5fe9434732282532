package auction

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
)

// MemoryStore implements Store with in-process concurrency safety.
// One mutex serializes RecordBid and CommitClose, which is linearizable by
// construction; the Postgres store achieves the same with per-crop
// conditional updates instead.
type MemoryStore struct {
	mu       sync.RWMutex
	current  map[string]Bid
	history  map[string][]Bid
	outcomes map[string]Outcome
	wins     map[string]map[string]Win // bidderID -> cropID -> win

	crops    catalog.Store
	messages chat.Store
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a fresh ledger backed by the given collaborators.
func NewMemoryStore(crops catalog.Store, messages chat.Store) *MemoryStore {
	return &MemoryStore{
		current:  make(map[string]Bid),
		history:  make(map[string][]Bid),
		outcomes: make(map[string]Outcome),
		wins:     make(map[string]map[string]Win),
		crops:    crops,
		messages: messages,
	}
}

func (s *MemoryStore) CurrentBid(ctx context.Context, cropID string) (Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.current[cropID]
	if !ok {
		return Bid{}, ErrNoBids
	}
	return b, nil
}

func (s *MemoryStore) RecordBid(ctx context.Context, b Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	crop, err := s.crops.GetCrop(ctx, b.CropID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if crop.Status != catalog.StatusAvailable {
		return ErrAuctionClosed
	}
	if cur, ok := s.current[b.CropID]; ok && b.Price <= cur.Price {
		return &BidTooLowError{Current: cur.Price}
	}

	s.current[b.CropID] = b
	s.history[b.CropID] = append(s.history[b.CropID], b)
	if err := s.crops.SetCurrentPrice(ctx, b.CropID, b.Price, b.BidderID); err != nil {
		// Roll the ledger writes back rather than report success with an
		// inconsistent crop cache.
		delete(s.current, b.CropID)
		s.history[b.CropID] = s.history[b.CropID][:len(s.history[b.CropID])-1]
		return err
	}
	return nil
}

func (s *MemoryStore) BidHistory(ctx context.Context, cropID string) ([]Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Bid(nil), s.history[cropID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price > out[j].Price
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

func (s *MemoryStore) Outcome(ctx context.Context, cropID string) (Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[cropID]
	if !ok {
		return Outcome{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) CommitClose(ctx context.Context, cropID string, decidedAt time.Time) (Outcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.outcomes[cropID]; ok {
		return o, false, nil
	}

	cur, ok := s.current[cropID]
	if !ok {
		// Distinguish a bid-less crop from a missing one.
		if _, err := s.crops.GetCrop(ctx, cropID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Outcome{}, false, ErrNotFound
			}
			return Outcome{}, false, err
		}
		return Outcome{}, false, ErrNoBids
	}

	out := Outcome{
		CropID:    cropID,
		WinnerID:  cur.BidderID,
		Price:     cur.Price,
		DecidedAt: decidedAt,
	}

	// Outcome first: a Closed crop must never lack one.
	s.outcomes[cropID] = out
	if err := s.crops.CloseCrop(ctx, cropID, cur.BidderID, cur.BidderContact, cur.Price); err != nil {
		if errors.Is(err, catalog.ErrAlreadyClosed) {
			// Crop was closed out-of-band without an outcome; keeping ours
			// restores the invariant.
			s.upsertWinLocked(Win{BidderID: cur.BidderID, CropID: cropID, Price: cur.Price, WonAt: decidedAt})
			return out, true, nil
		}
		delete(s.outcomes, cropID)
		if errors.Is(err, catalog.ErrNotFound) {
			return Outcome{}, false, ErrNotFound
		}
		return Outcome{}, false, err
	}

	crop, err := s.crops.GetCrop(ctx, cropID)
	farmerID := ""
	if err == nil {
		farmerID = crop.FarmerID
	}
	s.upsertWinLocked(Win{BidderID: cur.BidderID, CropID: cropID, FarmerID: farmerID, Price: cur.Price, WonAt: decidedAt})
	return out, true, nil
}

func (s *MemoryStore) UpsertWin(ctx context.Context, w Win) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertWinLocked(w)
	return nil
}

func (s *MemoryStore) upsertWinLocked(w Win) {
	byCrop, ok := s.wins[w.BidderID]
	if !ok {
		byCrop = make(map[string]Win)
		s.wins[w.BidderID] = byCrop
	}
	if prev, ok := byCrop[w.CropID]; ok && w.FarmerID == "" {
		w.FarmerID = prev.FarmerID
	}
	byCrop[w.CropID] = w
}

func (s *MemoryStore) WinsByBidder(ctx context.Context, bidderID string) ([]Win, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Win
	for _, w := range s.wins[bidderID] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WonAt.After(out[j].WonAt) })
	return out, nil
}

func (s *MemoryStore) DeleteWin(ctx context.Context, bidderID, cropID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCrop, ok := s.wins[bidderID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := byCrop[cropID]; !ok {
		return ErrNotFound
	}
	delete(byCrop, cropID)
	return nil
}

func (s *MemoryStore) DeleteCropCascade(ctx context.Context, cropID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Crop row goes last so a failed cascade leaves the crop present and the
	// whole delete retryable.
	if err := s.messages.DeleteMessagesByCrop(ctx, cropID); err != nil {
		return err
	}
	delete(s.current, cropID)
	delete(s.history, cropID)
	delete(s.outcomes, cropID)
	for _, byCrop := range s.wins {
		delete(byCrop, cropID)
	}
	if err := s.crops.DeleteCrop(ctx, cropID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	return nil
}

package catalog

import (
	"context"
	"sort"
	"sync"

	"harvestbid.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	crops map[string]*Crop
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{crops: make(map[string]*Crop)}
}

func (s *InMemory) CreateCrop(ctx context.Context, c *Crop) error {
	if c == nil || c.FarmerID == "" {
		return ErrInvalidInput
	}
	Normalize(c)
	if c.ID == "" {
		c.ID = ids.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.crops[c.ID] = &cp
	return nil
}

func (s *InMemory) GetCrop(ctx context.Context, id string) (Crop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.crops[id]
	if !ok {
		return Crop{}, ErrNotFound
	}
	return cloneCrop(c), nil
}

func (s *InMemory) ListCrops(ctx context.Context) ([]Crop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Crop, 0, len(s.crops))
	for _, c := range s.crops {
		out = append(out, cloneCrop(c))
	}
	sortByListedAt(out)
	return out, nil
}

func (s *InMemory) ListCropsByFarmer(ctx context.Context, farmerID string) ([]Crop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Crop
	for _, c := range s.crops {
		if c.FarmerID == farmerID {
			out = append(out, cloneCrop(c))
		}
	}
	sortByListedAt(out)
	return out, nil
}

func (s *InMemory) UpdateCrop(ctx context.Context, id string, upd Update) (Crop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[id]
	if !ok {
		return Crop{}, ErrNotFound
	}
	applyUpdate(c, upd)
	Normalize(c)
	return cloneCrop(c), nil
}

func (s *InMemory) SetCurrentPrice(ctx context.Context, id string, price int64, bidderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[id]
	if !ok {
		return ErrNotFound
	}
	c.Price = price
	c.HighestBidderID = bidderID
	return nil
}

func (s *InMemory) CloseCrop(ctx context.Context, id, winnerID, winnerContact string, soldPrice int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.crops[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != StatusAvailable {
		return ErrAlreadyClosed
	}
	c.Status = StatusClosed
	c.Sold = true
	c.WinnerID = winnerID
	c.WinnerContact = winnerContact
	c.SoldPrice = soldPrice
	return nil
}

func (s *InMemory) DeleteCrop(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.crops[id]; !ok {
		return ErrNotFound
	}
	delete(s.crops, id)
	return nil
}

func applyUpdate(c *Crop, upd Update) {
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Type != nil {
		c.Type = *upd.Type
	}
	if upd.Quality != nil {
		c.Quality = *upd.Quality
	}
	if upd.Quantity != nil {
		c.Quantity = *upd.Quantity
	}
	if upd.Price != nil {
		c.Price = *upd.Price
	}
	if upd.Images != nil {
		c.Images = append([]string(nil), upd.Images...)
		if len(c.Images) > 0 {
			c.Image = c.Images[0]
		}
	}
	if upd.Location != nil {
		c.Location = *upd.Location
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
}

func cloneCrop(c *Crop) Crop {
	out := *c
	out.Images = append([]string(nil), c.Images...)
	return out
}

func sortByListedAt(crops []Crop) {
	sort.Slice(crops, func(i, j int) bool {
		if crops[i].ListedAt.Equal(crops[j].ListedAt) {
			return crops[i].ID < crops[j].ID
		}
		return crops[i].ListedAt.After(crops[j].ListedAt)
	})
}

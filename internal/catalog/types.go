package catalog

import (
	"errors"
	"strings"
	"time"
)

// Crop auction status. The transition Available -> Closed is one-way.
const (
	StatusAvailable = "Available"
	StatusClosed    = "Closed"
)

const (
	defaultLocation = "Not specified"
	defaultImage    = "/static/default_crop.jpg"
)

var (
	ErrNotFound     = errors.New("catalog: crop not found")
	ErrInvalidInput = errors.New("catalog: invalid input")
	// ErrAlreadyClosed reports a conditional close that found the crop
	// already out of Available.
	ErrAlreadyClosed = errors.New("catalog: crop already closed")
)

// Crop is a farmer's listing. Price is kept in minor units (paise) and
// mirrors the current highest bid once bidding starts; the winner fields are
// denormalized caches written only by the auction close transition.
type Crop struct {
	ID       string  `json:"id"`
	FarmerID string  `json:"farmer_id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Quality  string  `json:"quality"`
	Quantity float64 `json:"quantity"`
	Price    int64   `json:"price"`
	Images   []string `json:"images"`
	Image    string   `json:"image"`
	Location string   `json:"location"`
	Notes    string   `json:"notes"`

	ListedAt time.Time `json:"listed_at"`
	Status   string    `json:"status"`
	Sold     bool      `json:"sold"`

	HighestBidderID string `json:"highest_bidder_id,omitempty"`
	WinnerID        string `json:"winner_id,omitempty"`
	WinnerContact   string `json:"winner_contact,omitempty"`
	SoldPrice       int64  `json:"sold_price,omitempty"`
}

// Update carries the editable display attributes. Nil fields are untouched.
type Update struct {
	Name     *string
	Type     *string
	Quality  *string
	Quantity *float64
	Price    *int64
	Images   []string
	Location *string
	Notes    *string
}

// Normalize fills the defaults the marketplace has always guaranteed for a
// listing: non-empty name/type/quality, a location placeholder, at least one
// image with Image mirroring Images[0], and Available/unsold status.
func Normalize(c *Crop) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = "Unnamed"
	}
	c.Type = strings.TrimSpace(c.Type)
	if c.Type == "" {
		c.Type = "-"
	}
	c.Quality = strings.TrimSpace(c.Quality)
	if c.Quality == "" {
		c.Quality = "-"
	}
	c.Location = strings.TrimSpace(c.Location)
	if c.Location == "" {
		c.Location = defaultLocation
	}
	c.Notes = strings.TrimSpace(c.Notes)
	if len(c.Images) == 0 {
		if c.Image != "" {
			c.Images = []string{c.Image}
		} else {
			c.Images = []string{defaultImage}
		}
	}
	c.Image = c.Images[0]
	if c.Status == "" {
		c.Status = StatusAvailable
	}
	if c.ListedAt.IsZero() {
		c.ListedAt = time.Now().UTC()
	}
	c.Sold = c.Status == StatusClosed
}

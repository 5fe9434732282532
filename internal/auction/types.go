package auction

import (
	"errors"
	"fmt"
	"time"

	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/money"
)

var (
	ErrNotFound         = errors.New("auction: not found")
	ErrNoBids           = errors.New("auction: no bids placed")
	ErrAuctionClosed    = errors.New("auction: bidding closed")
	ErrAuctionNotClosed = errors.New("auction: auction not closed yet")
	ErrNotWinner        = errors.New("auction: not the recorded winner")
	ErrNotOwner         = errors.New("auction: not the crop owner")
	ErrInvalidRole      = errors.New("auction: invalid role")
	ErrInvalidInput     = errors.New("auction: invalid input")
	ErrStoreUnavailable = errors.New("auction: store unavailable")
)

// BidTooLowError rejects a bid at or below the current highest price and
// carries that price so the caller can retry with a higher offer.
type BidTooLowError struct {
	Current int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be higher than current %s", money.Format(e.Current))
}

// Bid is one accepted offer. The same shape backs both views of the ledger:
// the single current-bid record and the append-only history.
type Bid struct {
	ID            string    `json:"id"`
	CropID        string    `json:"crop_id"`
	BidderID      string    `json:"bidder_id"`
	BidderContact string    `json:"bidder_contact"`
	Price         int64     `json:"price"`
	PlacedAt      time.Time `json:"placed_at"`
}

// Outcome is the immutable record of who won a crop's auction and at what
// price. Written exactly once, at close.
type Outcome struct {
	CropID    string    `json:"crop_id"`
	WinnerID  string    `json:"winner_id"`
	Price     int64     `json:"price"`
	DecidedAt time.Time `json:"decided_at"`
}

// Win is a bidder-facing won-crop entry, keyed by (bidder, crop) and managed
// independently of the Outcome it mirrors.
type Win struct {
	BidderID string    `json:"bidder_id"`
	CropID   string    `json:"crop_id"`
	FarmerID string    `json:"farmer_id"`
	Price    int64     `json:"price"`
	WonAt    time.Time `json:"won_at"`

	// Snapshot of the crop at read time; nil when the crop has been deleted.
	Crop *catalog.Crop `json:"crop,omitempty"`
}

// Grant is a successful chat authorization: the user may exchange messages
// about the crop with the designated counterpart.
type Grant struct {
	CropID        string `json:"crop_id"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	CounterpartID string `json:"counterpart_id"`
}

package auction

import (
	"context"
	"time"
)

// Store is the bid-ledger persistence boundary. The operations that must be
// serialized per crop — RecordBid's compare-and-set and CommitClose's
// Available->Closed transition — are atomic inside the store, so the service
// never works from a stale read.
type Store interface {
	// CurrentBid returns the single highest accepted bid, or ErrNoBids.
	CurrentBid(ctx context.Context, cropID string) (Bid, error)

	// RecordBid atomically validates and records an accepted bid: the crop
	// must exist (ErrNotFound) and be Available (ErrAuctionClosed), and the
	// price must be strictly above the current bid (*BidTooLowError). On
	// success it upserts the current-bid record, appends a history entry and
	// refreshes the crop's cached price and highest-bidder reference; no
	// reader may observe one of those writes without the others.
	RecordBid(ctx context.Context, b Bid) error

	// BidHistory returns accepted bids ordered by price descending, ties by
	// submission time ascending.
	BidHistory(ctx context.Context, cropID string) ([]Bid, error)

	// Outcome returns the recorded auction outcome, or ErrNotFound.
	Outcome(ctx context.Context, cropID string) (Outcome, error)

	// CommitClose performs the close transition for the crop as one atomic
	// step: determine the winner from the current bid, write the outcome,
	// flip the crop to Closed with winner fields populated, and upsert the
	// won-crop entry. Returns the outcome and whether this call created it;
	// an already-closed crop yields the recorded outcome with created=false.
	// ErrNoBids when the crop has no current bid, ErrNotFound when it does
	// not exist.
	CommitClose(ctx context.Context, cropID string, decidedAt time.Time) (Outcome, bool, error)

	// Won-crop register, keyed by (bidder, crop).
	UpsertWin(ctx context.Context, w Win) error
	WinsByBidder(ctx context.Context, bidderID string) ([]Win, error)
	DeleteWin(ctx context.Context, bidderID, cropID string) error

	// DeleteCropCascade removes the crop and every dependent record (current
	// bid, history, outcome, won-crop entries, messages) or fails without
	// partial effect.
	DeleteCropCascade(ctx context.Context, cropID string) error
}

package catalog

import "context"

// Store is the crop catalog repository consumed by the auction core and the
// HTTP layer. Implementations must make CloseCrop a conditional one-way
// transition so an auction can close at most once.
type Store interface {
	CreateCrop(ctx context.Context, c *Crop) error
	GetCrop(ctx context.Context, id string) (Crop, error)
	ListCrops(ctx context.Context) ([]Crop, error)
	ListCropsByFarmer(ctx context.Context, farmerID string) ([]Crop, error)
	UpdateCrop(ctx context.Context, id string, upd Update) (Crop, error)

	// SetCurrentPrice refreshes the cached display price and highest-bidder
	// reference after an accepted bid.
	SetCurrentPrice(ctx context.Context, id string, price int64, bidderID string) error

	// CloseCrop flips Available -> Closed, marks the crop sold and records the
	// winner cache fields. Returns ErrAlreadyClosed when the crop is not
	// Available, ErrNotFound when it does not exist.
	CloseCrop(ctx context.Context, id, winnerID, winnerContact string, soldPrice int64) error

	// DeleteCrop removes the listing row only. Cascading removal of dependent
	// records is the auction core's contract, not the catalog's.
	DeleteCrop(ctx context.Context, id string) error
}

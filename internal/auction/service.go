// Package auction implements the bid lifecycle and auction-closing protocol:
// bid validation against the single current-bid record, the one-way
// Available->Closed transition, winner persistence, the won-crop register and
// chat authorization between farmer and winner.
package auction

import (
	"context"
	"errors"
	"strings"
	"time"

	"harvestbid.org/internal/auth"
	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
	"harvestbid.org/internal/ids"
	"harvestbid.org/internal/obs"
)

// Service is the auction core. It holds no state of its own; everything lives
// behind the injected repositories.
type Service struct {
	store    Store
	crops    catalog.Store
	messages chat.Store
	now      func() time.Time
}

// NewService wires the core against its repositories.
func NewService(store Store, crops catalog.Store, messages chat.Store) *Service {
	return &Service{
		store:    store,
		crops:    crops,
		messages: messages,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid validates and records a bid. The price must be strictly above the
// crop's current bid; on acceptance the current-bid record, the history and
// the crop's cached price are updated together.
func (s *Service) PlaceBid(ctx context.Context, cropID, bidderID, bidderContact string, price int64) (Bid, error) {
	cropID = strings.TrimSpace(cropID)
	bidderID = strings.TrimSpace(bidderID)
	if cropID == "" || bidderID == "" || price <= 0 {
		return Bid{}, ErrInvalidInput
	}

	b := Bid{
		ID:            ids.New(),
		CropID:        cropID,
		BidderID:      bidderID,
		BidderContact: strings.TrimSpace(bidderContact),
		Price:         price,
		PlacedAt:      s.now(),
	}
	if err := s.store.RecordBid(ctx, b); err != nil {
		var tooLow *BidTooLowError
		switch {
		case errors.As(err, &tooLow):
			obs.BidRejected("too_low")
		case errors.Is(err, ErrAuctionClosed):
			obs.BidRejected("closed")
		case errors.Is(err, ErrNotFound):
			obs.BidRejected("not_found")
		}
		return Bid{}, err
	}
	obs.BidAccepted()
	return b, nil
}

// CurrentBid returns the highest accepted bid for the crop, or ErrNoBids.
func (s *Service) CurrentBid(ctx context.Context, cropID string) (Bid, error) {
	return s.store.CurrentBid(ctx, cropID)
}

// BidHistory returns all accepted bids, price descending.
func (s *Service) BidHistory(ctx context.Context, cropID string) ([]Bid, error) {
	return s.store.BidHistory(ctx, cropID)
}

// CloseAuction transitions the crop from Available to Closed, determines the
// winner from the current bid and persists the outcome, the crop's winner
// fields and a won-crop entry as one transition. Re-closing an already-closed
// crop is a no-op returning the recorded outcome.
func (s *Service) CloseAuction(ctx context.Context, cropID string) (Outcome, error) {
	if out, err := s.store.Outcome(ctx, cropID); err == nil {
		return out, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Outcome{}, err
	}

	out, created, err := s.store.CommitClose(ctx, cropID, s.now())
	if err != nil {
		return Outcome{}, err
	}
	if created {
		obs.AuctionClosed()
	}
	return out, nil
}

// Outcome returns the recorded auction outcome, or ErrNotFound when the crop
// has not closed (or does not exist).
func (s *Service) Outcome(ctx context.Context, cropID string) (Outcome, error) {
	return s.store.Outcome(ctx, cropID)
}

// RecordWin upserts a won-crop entry keyed by (bidder, crop).
func (s *Service) RecordWin(ctx context.Context, bidderID, cropID, farmerID string, price int64) (Win, error) {
	bidderID = strings.TrimSpace(bidderID)
	cropID = strings.TrimSpace(cropID)
	if bidderID == "" || cropID == "" || price <= 0 {
		return Win{}, ErrInvalidInput
	}
	w := Win{
		BidderID: bidderID,
		CropID:   cropID,
		FarmerID: strings.TrimSpace(farmerID),
		Price:    price,
		WonAt:    s.now(),
	}
	if err := s.store.UpsertWin(ctx, w); err != nil {
		return Win{}, err
	}
	return w, nil
}

// ListWins returns the bidder's won-crop entries, each enriched with the
// referenced crop as it exists now. Entries for since-deleted crops keep a
// nil snapshot.
func (s *Service) ListWins(ctx context.Context, bidderID string) ([]Win, error) {
	wins, err := s.store.WinsByBidder(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	for i := range wins {
		crop, err := s.crops.GetCrop(ctx, wins[i].CropID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, err
		}
		wins[i].Crop = &crop
	}
	return wins, nil
}

// RemoveWin deletes the (bidder, crop) entry from the register. The auction
// outcome is untouched.
func (s *Service) RemoveWin(ctx context.Context, bidderID, cropID string) error {
	return s.store.DeleteWin(ctx, bidderID, cropID)
}

// AuthorizeChat decides whether userID, acting in the given role, may message
// about the crop, and with whom. The winner is resolved from the outcome
// record first; the current bid and the crop's cached winner field remain as
// legacy fallbacks for pre-existing data.
func (s *Service) AuthorizeChat(ctx context.Context, cropID, userID, role string) (Grant, error) {
	crop, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, err
	}

	winnerID, err := s.resolveWinner(ctx, crop)
	if err != nil {
		return Grant{}, err
	}

	switch role {
	case auth.RoleFarmer:
		if crop.FarmerID == "" || crop.FarmerID != userID {
			obs.ChatDenied("not_owner")
			return Grant{}, ErrNotOwner
		}
		if winnerID == "" {
			obs.ChatDenied("not_closed")
			return Grant{}, ErrAuctionNotClosed
		}
		return Grant{CropID: crop.ID, UserID: userID, Role: role, CounterpartID: winnerID}, nil
	case auth.RoleBidder:
		if winnerID == "" {
			obs.ChatDenied("not_closed")
			return Grant{}, ErrAuctionNotClosed
		}
		if winnerID != userID {
			obs.ChatDenied("not_winner")
			return Grant{}, ErrNotWinner
		}
		return Grant{CropID: crop.ID, UserID: userID, Role: role, CounterpartID: crop.FarmerID}, nil
	default:
		obs.ChatDenied("invalid_role")
		return Grant{}, ErrInvalidRole
	}
}

func (s *Service) resolveWinner(ctx context.Context, crop catalog.Crop) (string, error) {
	out, err := s.store.Outcome(ctx, crop.ID)
	if err == nil {
		return out.WinnerID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	// Legacy fallbacks for partially-migrated data only: a crop closed before
	// outcomes existed still carries the winner in the ledger or its own
	// cached fields.
	if crop.Status == catalog.StatusClosed {
		if cur, err := s.store.CurrentBid(ctx, crop.ID); err == nil {
			return cur.BidderID, nil
		} else if !errors.Is(err, ErrNoBids) {
			return "", err
		}
		if crop.WinnerID != "" {
			return crop.WinnerID, nil
		}
		if crop.HighestBidderID != "" {
			return crop.HighestBidderID, nil
		}
	}
	return "", nil
}

// Messages returns the crop's chat history, gate-checked for the caller.
func (s *Service) Messages(ctx context.Context, cropID, userID, role string) ([]chat.Message, error) {
	if _, err := s.AuthorizeChat(ctx, cropID, userID, role); err != nil {
		return nil, err
	}
	return s.messages.MessagesByCrop(ctx, cropID)
}

// SendMessage appends a chat message from the caller to the counterpart the
// gate designates.
func (s *Service) SendMessage(ctx context.Context, cropID, userID, role, body string) (chat.Message, error) {
	grant, err := s.AuthorizeChat(ctx, cropID, userID, role)
	if err != nil {
		return chat.Message{}, err
	}
	m := chat.Message{
		CropID:     cropID,
		SenderID:   userID,
		ReceiverID: grant.CounterpartID,
		Body:       body,
		SentAt:     s.now(),
	}
	if err := s.messages.AppendMessage(ctx, &m); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

// DeleteCrop removes the farmer's listing together with its bids, history,
// outcome, won-crop entries and messages, or fails without partial effect.
func (s *Service) DeleteCrop(ctx context.Context, cropID, farmerID string) error {
	crop, err := s.crops.GetCrop(ctx, cropID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if crop.FarmerID != farmerID {
		return ErrNotOwner
	}
	return s.store.DeleteCropCascade(ctx, cropID)
}

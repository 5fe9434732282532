package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"harvestbid.org/internal/auction"
	"harvestbid.org/internal/audit"
	"harvestbid.org/internal/auth"
	"harvestbid.org/internal/money"
	"harvestbid.org/internal/stream"
)

type placeBidRequest struct {
	Price string `json:"price"`
}

type recordWinRequest struct {
	CropID string `json:"crop_id"`
	Price  string `json:"price"`
}

func (a *API) handleBids(w http.ResponseWriter, r *http.Request, cropID string) {
	switch r.Method {
	case http.MethodPost:
		a.placeBid(w, r, cropID)
	case http.MethodGet:
		a.bidHistory(w, r, cropID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) placeBid(w http.ResponseWriter, r *http.Request, cropID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if principal.Role != auth.RoleBidder {
		writeError(w, r, http.StatusForbidden, "only bidders can place bids")
		return
	}

	var req placeBidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	price, err := money.Parse(req.Price)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	contact := ""
	if user, err := a.users.UserByID(r.Context(), principal.UserID); err == nil {
		contact = user.Contact
	}

	bid, err := a.core.PlaceBid(r.Context(), cropID, principal.UserID, contact, price)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	a.publishEvent(r, stream.Event{
		Type:      stream.TypeBidAccepted,
		CropID:    bid.CropID,
		BidderID:  bid.BidderID,
		Price:     bid.Price,
		Timestamp: bid.PlacedAt,
	})

	_ = audit.LogEvent(r.Context(), "auction.bid.accepted", map[string]any{
		"crop_id": bid.CropID,
		"bid_id":  bid.ID,
		"price":   money.Format(bid.Price),
	})

	writeJSON(w, http.StatusCreated, bid)
}

func (a *API) bidHistory(w http.ResponseWriter, r *http.Request, cropID string) {
	bids, err := a.core.BidHistory(r.Context(), cropID)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	if bids == nil {
		bids = []auction.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": bids,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) currentBid(w http.ResponseWriter, r *http.Request, cropID string) {
	bid, err := a.core.CurrentBid(r.Context(), cropID)
	if err != nil {
		if errors.Is(err, auction.ErrNoBids) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (a *API) closeAuction(w http.ResponseWriter, r *http.Request, cropID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	crop, err := a.crops.GetCrop(r.Context(), cropID)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	if crop.FarmerID != principal.UserID {
		writeError(w, r, http.StatusForbidden, "only the listing farmer can close an auction")
		return
	}

	// Whether this close is fresh decides the event; a replay must not emit.
	_, outErr := a.core.Outcome(r.Context(), cropID)
	fresh := errors.Is(outErr, auction.ErrNotFound)

	out, err := a.core.CloseAuction(r.Context(), cropID)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	if fresh {
		a.publishEvent(r, stream.Event{
			Type:      stream.TypeAuctionClosed,
			CropID:    out.CropID,
			BidderID:  out.WinnerID,
			Price:     out.Price,
			Timestamp: out.DecidedAt,
		})
		_ = audit.LogEvent(r.Context(), "auction.closed", map[string]any{
			"crop_id":   out.CropID,
			"winner_id": out.WinnerID,
			"price":     money.Format(out.Price),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (a *API) outcome(w http.ResponseWriter, r *http.Request, cropID string) {
	out, err := a.core.Outcome(r.Context(), cropID)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) publishEvent(r *http.Request, evt stream.Event) {
	if a.stream != nil {
		a.stream.Publish(evt)
	}
	if a.events != nil {
		_ = a.events.Publish(r.Context(), evt)
	}
}

// --- wins ---

func (a *API) handleWinsCollection(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		wins, err := a.core.ListWins(r.Context(), principal.UserID)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		if wins == nil {
			wins = []auction.Win{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": wins,
			"as_of": time.Now().UTC(),
		})
	case http.MethodPost:
		var req recordWinRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		price, err := money.Parse(req.Price)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		crop, err := a.crops.GetCrop(r.Context(), strings.TrimSpace(req.CropID))
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		win, err := a.core.RecordWin(r.Context(), principal.UserID, crop.ID, crop.FarmerID, price)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, win)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleWinResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	cropID := strings.TrimPrefix(r.URL.Path, "/v1/wins/")
	cropID = strings.TrimSuffix(cropID, "/")
	if cropID == "" || strings.Contains(cropID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if err := a.core.RemoveWin(r.Context(), principal.UserID, cropID); err != nil {
		handleCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

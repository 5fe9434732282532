package httpapi

import (
	"net/http"
	"strings"
	"time"

	"harvestbid.org/internal/audit"
	"harvestbid.org/internal/auth"
	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/money"
)

type createCropRequest struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Quality  string   `json:"quality"`
	Quantity float64  `json:"quantity"`
	Price    string   `json:"price"`
	Images   []string `json:"images"`
	Location string   `json:"location"`
	Notes    string   `json:"notes"`
}

type updateCropRequest struct {
	Name     *string  `json:"name"`
	Type     *string  `json:"type"`
	Quality  *string  `json:"quality"`
	Quantity *float64 `json:"quantity"`
	Price    *string  `json:"price"`
	Images   []string `json:"images"`
	Location *string  `json:"location"`
	Notes    *string  `json:"notes"`
}

func (a *API) handleCropsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCrops(w, r)
	case http.MethodPost:
		a.createCrop(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCropResource dispatches /v1/crops/{id} and its nested resources.
func (a *API) handleCropResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/crops/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		a.cropByID(w, r, id)
	case "bids":
		a.handleBids(w, r, id)
	case "bids/current":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.currentBid(w, r, id)
	case "close":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.closeAuction(w, r, id)
	case "outcome":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.outcome(w, r, id)
	case "chat":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.authorizeChat(w, r, id)
	case "messages":
		a.handleMessages(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) cropByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		crop, err := a.crops.GetCrop(r.Context(), id)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, crop)
	case http.MethodPut:
		a.updateCrop(w, r, id)
	case http.MethodDelete:
		a.deleteCrop(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listCrops(w http.ResponseWriter, r *http.Request) {
	farmer := strings.TrimSpace(r.URL.Query().Get("farmer_id"))
	if farmer == "me" {
		principal, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		farmer = principal.UserID
	}

	var (
		items []catalog.Crop
		err   error
	)
	if farmer != "" {
		items, err = a.crops.ListCropsByFarmer(r.Context(), farmer)
	} else {
		items, err = a.crops.ListCrops(r.Context())
	}
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Crop{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) createCrop(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if principal.Role != auth.RoleFarmer {
		writeError(w, r, http.StatusForbidden, "only farmers can list crops")
		return
	}

	var req createCropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var price int64
	if strings.TrimSpace(req.Price) != "" {
		var err error
		price, err = money.Parse(req.Price)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Quantity < 0 {
		writeError(w, r, http.StatusBadRequest, "quantity must be >= 0")
		return
	}

	crop := catalog.Crop{
		FarmerID: principal.UserID,
		Name:     req.Name,
		Type:     req.Type,
		Quality:  req.Quality,
		Quantity: req.Quantity,
		Price:    price,
		Images:   req.Images,
		Location: req.Location,
		Notes:    req.Notes,
	}
	if err := a.crops.CreateCrop(r.Context(), &crop); err != nil {
		handleCoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "catalog.crop.created", map[string]any{
		"crop_id": crop.ID,
	})

	w.Header().Set("Location", "/v1/crops/"+crop.ID)
	writeJSON(w, http.StatusCreated, crop)
}

func (a *API) updateCrop(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	existing, err := a.crops.GetCrop(r.Context(), id)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	if existing.FarmerID != principal.UserID {
		writeError(w, r, http.StatusForbidden, "only the listing farmer can edit a crop")
		return
	}

	var req updateCropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	upd := catalog.Update{
		Name:     req.Name,
		Type:     req.Type,
		Quality:  req.Quality,
		Quantity: req.Quantity,
		Images:   req.Images,
		Location: req.Location,
		Notes:    req.Notes,
	}
	if req.Price != nil {
		price, err := money.Parse(*req.Price)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd.Price = &price
	}

	crop, err := a.crops.UpdateCrop(r.Context(), id, upd)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "catalog.crop.updated", map[string]any{
		"crop_id": crop.ID,
	})
	writeJSON(w, http.StatusOK, crop)
}

func (a *API) deleteCrop(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := a.core.DeleteCrop(r.Context(), id, principal.UserID); err != nil {
		handleCoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "catalog.crop.deleted", map[string]any{
		"crop_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

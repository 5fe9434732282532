package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"harvestbid.org/internal/auction"
	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
	"harvestbid.org/internal/directory"
	"harvestbid.org/internal/events"
	"harvestbid.org/internal/obs"
	"harvestbid.org/internal/stream"
)

// ReadyProbe reports whether the backing store can serve traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auction core and its collaborators.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	core   *auction.Service
	crops  catalog.Store
	users  directory.Store
	stream *stream.Stream
	events *events.Publisher

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, core *auction.Service, crops catalog.Store, users directory.Store, st *stream.Stream, pub *events.Publisher) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		core:       core,
		crops:      crops,
		users:      users,
		stream:     st,
		events:     pub,
		rateBurst:  40,
		ratePerSec: 20,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/profile", a.handleProfile)

	a.mux.HandleFunc("/v1/crops", a.handleCropsCollection)
	a.mux.HandleFunc("/v1/crops/", a.handleCropResource)

	a.mux.HandleFunc("/v1/wins", a.handleWinsCollection)
	a.mux.HandleFunc("/v1/wins/", a.handleWinResource)

	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wires the middleware chain around the mux. Order matters: the
// request id must exist before logging, and authn runs last so rejected
// requests are still rate-limited and logged.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "harvestbid-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "harvestbid-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleCoreError maps domain errors onto HTTP statuses. A BidTooLowError is
// a 409 carrying the current price so clients can re-offer without a second
// round trip.
func handleCoreError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		payload := map[string]any{
			"error":         tooLow.Error(),
			"current_price": tooLow.Current,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, auction.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auction.ErrNoBids):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auction.ErrAuctionClosed), errors.Is(err, catalog.ErrAlreadyClosed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auction.ErrAuctionNotClosed),
		errors.Is(err, auction.ErrNotWinner),
		errors.Is(err, auction.ErrNotOwner),
		errors.Is(err, auction.ErrInvalidRole):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auction.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, chat.ErrInvalidInput),
		errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auction.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

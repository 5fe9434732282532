package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Auction domain metrics.
var (
	bidsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bids_accepted_total",
		Help: "Bids accepted into the ledger.",
	})

	bidsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bids_rejected_total",
			Help: "Bids rejected, by reason.",
		},
		[]string{"reason"},
	)

	auctionsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auctions_closed_total",
		Help: "Auctions transitioned to Closed.",
	})

	chatDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_denied_total",
			Help: "Chat authorization denials, by reason.",
		},
		[]string{"reason"},
	)
)

// Init registers all metrics in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		bidsAccepted, bidsRejected, auctionsClosed, chatDenied,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BidAccepted increments the accepted-bid counter.
func BidAccepted() { bidsAccepted.Inc() }

// BidRejected increments the rejected-bid counter for the given reason.
func BidRejected(reason string) { bidsRejected.WithLabelValues(reason).Inc() }

// AuctionClosed increments the closed-auction counter.
func AuctionClosed() { auctionsClosed.Inc() }

// ChatDenied increments the chat-denial counter for the given reason.
func ChatDenied(reason string) { chatDenied.WithLabelValues(reason).Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric labels stay bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	// /v1/crops/<id>[/...] and /v1/wins/<id>
	if len(parts) >= 4 && parts[1] == "v1" && (parts[2] == "crops" || parts[2] == "wins") && parts[3] != "" {
		parts[3] = ":id"
		return strings.Join(parts, "/")
	}
	return p
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

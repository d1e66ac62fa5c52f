// Package api serves the dashboard facade and request intake over HTTP.
package api

import (
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsinha/relief/pkg/application/services/dashboard"
	"github.com/vsinha/relief/pkg/application/services/intake"
	"github.com/vsinha/relief/pkg/infrastructure/events"
)

// NewRouter registers every endpoint on a new mux. Read endpoints accept an
// optional ?disaster= query parameter to narrow the scope; event endpoints
// accept ?from= to page through the log.
func NewRouter(
	dash *dashboard.Service,
	in *intake.Service,
	eventLog events.EventStore,
	gatherer prometheus.Gatherer,
	logger logr.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handler{dashboard: dash, intake: in, eventLog: eventLog, logger: logger}
	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return withLogging(logger, fn)
	}

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Dashboard reads
	mux.HandleFunc("GET /api/resources/critical", wrap(h.criticalResources))
	mux.HandleFunc("GET /api/shelters/capacity", wrap(h.shelterCapacity))
	mux.HandleFunc("GET /api/requests/pending", wrap(h.pendingRequests))
	mux.HandleFunc("GET /api/summary", wrap(h.disasterSummary))
	mux.HandleFunc("GET /api/recommendations", wrap(h.recommendations))

	// Event log
	mux.HandleFunc("GET /api/events", wrap(h.allEvents))
	mux.HandleFunc("GET /api/requests/{id}/events", wrap(h.requestEvents))

	// Intake
	mux.HandleFunc("POST /api/requests", wrap(h.createRequest))
	mux.HandleFunc("PUT /api/requests/{id}", wrap(h.updateRequest))
	mux.HandleFunc("DELETE /api/requests/{id}", wrap(h.deleteRequest))

	// Actions
	mux.HandleFunc("POST /api/requests/{id}/approve", wrap(h.approveRequest))
	mux.HandleFunc("POST /api/requests/{id}/execute", wrap(h.executeRecommendation))
	mux.HandleFunc("POST /api/requests/{id}/reject", wrap(h.rejectRequest))

	return mux
}

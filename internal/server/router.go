package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinel-systems/secmon/common/middleware"
	"github.com/sentinel-systems/secmon/internal/handlers"
	secmw "github.com/sentinel-systems/secmon/internal/middleware"
)

// NewRouter constructs a ServeMux with the security monitoring API routes
// registered. The security interceptor wraps the whole mux so every route,
// including the monitoring API itself, is rate limited and audited.
func NewRouter(h *handlers.Handler, auth *secmw.Authenticator, sec *secmw.Security) http.Handler {
	mux := http.NewServeMux()

	// Ingestion (API-key protected inside the handler)
	mux.HandleFunc("/api/security/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.RecordEvent(w, r)
			return
		}
		auth.RequireStaff(h.ListEvents)(w, r)
	})

	// Query and export (staff only)
	mux.HandleFunc("/api/security/events/export", auth.RequireStaff(h.ExportEvents))
	mux.HandleFunc("/api/security/recent", auth.RequireStaff(h.RecentEvents))
	mux.HandleFunc("/api/security/dashboard", auth.RequireStaff(h.Dashboard))
	mux.HandleFunc("/api/security/event-types", auth.RequireStaff(h.EventTypes))

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(auth.Resolve(sec.Handler(mux)))
}

// Package handlers exposes the security monitoring HTTP API: event
// ingestion, queries over the durable log, CSV export, and the dashboard
// summary.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinel-systems/secmon/common/httputil"
	"github.com/sentinel-systems/secmon/common/logging"
	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/catalog"
	"github.com/sentinel-systems/secmon/internal/models"
	"github.com/sentinel-systems/secmon/internal/query"
	"github.com/sentinel-systems/secmon/internal/recorder"
)

const dateFormat = "2006-01-02"

// Handler serves the security monitoring API.
type Handler struct {
	recorder *recorder.Recorder
	queries  *query.Service
	cache    *cache.EventCache
	apiKey   string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Handler.
func New(rec *recorder.Recorder, queries *query.Service, c *cache.EventCache, apiKey string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		recorder: rec,
		queries:  queries,
		cache:    c,
		apiKey:   apiKey,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// recordEventRequest is the ingestion payload.
type recordEventRequest struct {
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Severity  string         `json:"severity,omitempty"`
}

// RecordEvent handles POST /api/security/events. Callers must present the
// configured API key; the event IP defaults to the request's client IP
// when not supplied in the body.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.apiKey == "" || r.Header.Get("X-API-Key") != h.apiKey {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, ok := catalog.Lookup(req.EventType); !ok {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid event type")
		return
	}

	ip := req.IPAddress
	if ip == "" {
		ip = httputil.GetClientIP(r)
	}

	var severity models.Severity
	if req.Severity != "" {
		sev, ok := models.ParseSeverity(req.Severity)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid severity")
			return
		}
		severity = sev
	}

	ev, err := h.recorder.Record(req.EventType, recorder.Options{
		UserID:    req.UserID,
		IPAddress: ip,
		Details:   req.Details,
		Severity:  severity,
	})
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid event type")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"message":  "Security event logged successfully",
		"event_id": ev.Timestamp.Format(models.TimestampFormat),
	})
}

// ListEvents handles GET /api/security/events with start_date/end_date
// (YYYY-MM-DD), limit, offset, event_type and severity filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseQueryParams(w, r)
	if !ok {
		return
	}

	events, err := h.queries.Query(params)
	if err != nil {
		h.logger.Error("security log query failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read security logs")
		return
	}
	if events == nil {
		events = []models.PersistedLogLine{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// ExportEvents handles GET /api/security/events/export, streaming the
// filtered result set as a CSV download. The default window is the last
// 30 days, and the filename embeds the queried date range.
func (h *Handler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseQueryParams(w, r)
	if !ok {
		return
	}

	now := h.now().UTC()
	if params.Start.IsZero() {
		params.Start = now.AddDate(0, 0, -30)
	}
	if params.End.IsZero() {
		params.End = now
	}
	// Export is unpaginated: the date range bounds the result.
	params.Limit = 0
	params.Offset = 0

	filename := fmt.Sprintf("security_logs_%s-%s.csv",
		params.Start.Format("20060102"), params.End.Format("20060102"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.queries.ExportCSV(w, params); err != nil {
		h.logger.Error("security log export failed", logging.Error(err))
	}
}

// RecentEvents handles GET /api/security/recent, serving the in-memory
// window without touching disk.
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := httputil.ParseIntParam(q.Get("limit"), 100)
	if !ok || limit < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	minSeverity := models.SeverityInfo
	if s := q.Get("min_severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid min_severity")
			return
		}
		minSeverity = sev
	}

	events := h.cache.Query(limit, cache.Filter{
		Kind:        q.Get("event_type"),
		UserID:      q.Get("user_id"),
		MinSeverity: minSeverity,
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// Dashboard handles GET /api/security/dashboard with a trailing-24h
// summary of the durable log.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queries.SummarySince(24 * time.Hour)
	if err != nil {
		h.logger.Error("dashboard summary failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read security logs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// EventTypes handles GET /api/security/event-types, returning the catalog.
func (h *Handler) EventTypes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"event_types": catalog.All(),
	})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready is the readiness endpoint.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"cached_events": h.cache.Len(),
	})
}

// parseQueryParams parses the shared filter parameters. It writes a 400
// response and returns false on malformed input.
func (h *Handler) parseQueryParams(w http.ResponseWriter, r *http.Request) (query.Params, bool) {
	q := r.URL.Query()
	var params query.Params

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(dateFormat, s)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return params, false
		}
		params.Start = t.UTC()
	}

	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(dateFormat, s)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return params, false
		}
		// Inclusive range: extend the end date to the end of the day.
		params.End = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	}

	limit, ok := httputil.ParseIntParam(q.Get("limit"), 0)
	if !ok || limit < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid limit or offset")
		return params, false
	}
	offset, ok := httputil.ParseIntParam(q.Get("offset"), 0)
	if !ok || offset < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid limit or offset")
		return params, false
	}
	params.Limit = limit
	params.Offset = offset

	params.Kind = q.Get("event_type")
	if s := q.Get("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid severity")
			return params, false
		}
		params.Severity = sev
	}

	return params, true
}

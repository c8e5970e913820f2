// Package recorder constructs finalized security events and fans them out
// to the durable log store and the in-memory cache.
package recorder

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/catalog"
	"github.com/sentinel-systems/secmon/internal/metrics"
	"github.com/sentinel-systems/secmon/internal/models"
)

// ErrUnknownEventKind is returned when the kind is not in the catalog.
// Recording a malformed event must never crash the request path that
// triggered it, so callers are expected to treat this as advisory.
var ErrUnknownEventKind = errors.New("unknown security event kind")

// Sink is the durable destination for finalized events.
type Sink interface {
	Append(line models.PersistedLogLine) error
}

// Recorder resolves severities from the catalog and owns the write path:
// durable sink first, then the in-memory cache. The sink and the cache are
// dumb downstream consumers; neither mutates the event.
type Recorder struct {
	sink   Sink
	cache  *cache.EventCache
	logger *slog.Logger
	seq    atomic.Uint64
	now    func() time.Time
}

// New creates a Recorder. sink may be nil in cache-only configurations
// (tests, dry runs); cache must not be nil.
func New(sink Sink, c *cache.EventCache, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:   sink,
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// Cache exposes the in-memory view for read-side consumers.
func (r *Recorder) Cache() *cache.EventCache {
	return r.cache
}

// Options carries the optional fields of a recording.
type Options struct {
	UserID    string
	IPAddress string
	Details   map[string]any
	// Severity overrides the catalog default when non-empty.
	Severity models.Severity
}

// Record creates and emits a security event of the given kind.
//
// Severity is the explicit override when provided, else the catalog
// default. Side effects, in order: append to the durable sink, then push
// to the cache. A sink failure is logged and absorbed; the event still
// becomes visible in the cache (durability best-effort, visibility
// best-effort-plus).
func (r *Recorder) Record(kind string, opts Options) (models.SecurityEvent, error) {
	entry, ok := catalog.Lookup(kind)
	if !ok {
		metrics.UnknownEventKinds.Inc()
		r.logger.Error("unknown security event kind", slog.String("event_type", kind))
		return models.SecurityEvent{}, ErrUnknownEventKind
	}

	severity := entry.DefaultSeverity
	if opts.Severity != "" && opts.Severity.Valid() {
		severity = opts.Severity
	}

	details := opts.Details
	if details == nil {
		details = map[string]any{}
	}

	ev := models.SecurityEvent{
		Timestamp: r.now().UTC(),
		Seq:       r.seq.Add(1),
		Kind:      kind,
		Severity:  severity,
		UserID:    opts.UserID,
		IPAddress: opts.IPAddress,
		Details:   details,
	}

	if r.sink != nil {
		if err := r.sink.Append(models.NewPersistedLine(ev, entry.Name)); err != nil {
			metrics.StoreAppendErrors.Inc()
			r.logger.Error("failed to persist security event",
				slog.String("event_type", kind),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.cache != nil {
		r.cache.Push(ev)
	}

	metrics.EventsRecorded.WithLabelValues(kind, string(severity)).Inc()
	r.logEvent(entry, ev)

	return ev, nil
}

// logEvent mirrors the event into the operational log at the level that
// matches its severity.
func (r *Recorder) logEvent(entry catalog.Kind, ev models.SecurityEvent) {
	attrs := []any{
		slog.String("event_type", ev.Kind),
		slog.String("severity", string(ev.Severity)),
		slog.String("user_id", ev.UserID),
		slog.String("ip", ev.IPAddress),
	}
	msg := "SECURITY: " + entry.Name

	switch ev.Severity {
	case models.SeverityCritical, models.SeverityError:
		r.logger.Error(msg, attrs...)
	case models.SeverityWarning:
		r.logger.Warn(msg, attrs...)
	default:
		r.logger.Info(msg, attrs...)
	}
}

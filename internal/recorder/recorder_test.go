package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/catalog"
	"github.com/sentinel-systems/secmon/internal/models"
)

// memSink collects appended lines and can be told to fail.
type memSink struct {
	lines []models.PersistedLogLine
	err   error
}

func (s *memSink) Append(line models.PersistedLogLine) error {
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, line)
	return nil
}

func TestRecord_UsesCatalogDefaultSeverity(t *testing.T) {
	sink := &memSink{}
	rec := New(sink, cache.New(10), nil)

	ev, err := rec.Record(catalog.SQLInjectionAttempt, Options{UserID: "1", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, ev.Severity)

	require.Len(t, sink.lines, 1)
	assert.Equal(t, models.SeverityCritical, sink.lines[0].Severity)
	assert.Equal(t, "SQL Injection Attempt", sink.lines[0].EventName)
}

func TestRecord_SeverityOverride(t *testing.T) {
	rec := New(&memSink{}, cache.New(10), nil)

	ev, err := rec.Record(catalog.LoginFailed, Options{Severity: models.SeverityCritical})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, ev.Severity)

	// Invalid overrides fall back to the catalog default.
	ev, err = rec.Record(catalog.LoginFailed, Options{Severity: "apocalyptic"})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityWarning, ev.Severity)
}

func TestRecord_UnknownKind(t *testing.T) {
	sink := &memSink{}
	c := cache.New(10)
	rec := New(sink, c, nil)

	_, err := rec.Record("wormhole_detected", Options{})
	require.ErrorIs(t, err, ErrUnknownEventKind)

	assert.Empty(t, sink.lines, "unknown kinds must not reach the store")
	assert.Zero(t, c.Len(), "unknown kinds must not reach the cache")
}

func TestRecord_SinkFailureStillCaches(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	c := cache.New(10)
	rec := New(sink, c, nil)

	ev, err := rec.Record(catalog.LoginSuccess, Options{UserID: "2"})
	require.NoError(t, err, "a sink failure is absorbed")
	assert.Equal(t, 1, c.Len(), "event is still visible in the cache")
	assert.Equal(t, "2", ev.UserID)
}

func TestRecord_TimestampsAndSequence(t *testing.T) {
	rec := New(&memSink{}, cache.New(10), nil)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec.SetClock(func() time.Time { return fixed })

	first, err := rec.Record(catalog.LoginSuccess, Options{})
	require.NoError(t, err)
	second, err := rec.Record(catalog.LoginSuccess, Options{})
	require.NoError(t, err)

	assert.Equal(t, fixed, first.Timestamp)
	assert.Equal(t, fixed, second.Timestamp)
	assert.Greater(t, second.Seq, first.Seq, "sequence breaks timestamp ties")
}

func TestRecord_NilDetailsBecomesEmptyMap(t *testing.T) {
	rec := New(&memSink{}, cache.New(10), nil)
	ev, err := rec.Record(catalog.ConfigChange, Options{})
	require.NoError(t, err)
	assert.NotNil(t, ev.Details)
}

func TestRecord_NilSinkIsCacheOnly(t *testing.T) {
	c := cache.New(10)
	rec := New(nil, c, nil)
	_, err := rec.Record(catalog.AdminAction, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

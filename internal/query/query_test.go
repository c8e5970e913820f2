package query

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-systems/secmon/internal/models"
)

// stubReader serves a fixed slice of persisted lines.
type stubReader struct {
	lines []models.PersistedLogLine
	err   error
}

func (r stubReader) ReadAll() ([]models.PersistedLogLine, error) {
	return r.lines, r.err
}

func line(ts, kind string, sev models.Severity, user string) models.PersistedLogLine {
	return models.PersistedLogLine{
		Timestamp: ts,
		Kind:      kind,
		Severity:  sev,
		UserID:    user,
	}
}

func TestQuery_DateRangeBoundaries(t *testing.T) {
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("2024-01-01T23:59:59Z", "login_failed", models.SeverityWarning, "1"),
		line("2024-01-02T00:00:01Z", "login_failed", models.SeverityWarning, "2"),
		line("2024-01-03T12:00:00Z", "login_failed", models.SeverityWarning, "3"),
	}})

	got, err := svc.Query(Params{
		Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].UserID, "only the event inside the day's range matches")
}

func TestQuery_RangeExcludesUnparseableTimestamps(t *testing.T) {
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("garbage", "login_failed", models.SeverityWarning, "1"),
		line("2024-01-02T10:00:00Z", "login_failed", models.SeverityWarning, "2"),
	}})

	got, err := svc.Query(Params{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].UserID)

	// Without a range the unparseable entry is kept.
	got, err = svc.Query(Params{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestQuery_LegacyTimestampFormat(t *testing.T) {
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("2024-01-02 10:00:00", "login_failed", models.SeverityWarning, "legacy"),
	}})

	got, err := svc.Query(Params{
		Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy", got[0].UserID)
}

func TestQuery_FiltersAndOrdering(t *testing.T) {
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("2024-01-01T10:00:00Z", "login_failed", models.SeverityWarning, "1"),
		line("2024-01-03T10:00:00Z", "csrf_failure", models.SeverityError, "2"),
		line("2024-01-02T10:00:00Z", "login_failed", models.SeverityWarning, "3"),
	}})

	got, err := svc.Query(Params{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].UserID, "newest first")
	assert.Equal(t, "3", got[1].UserID)
	assert.Equal(t, "1", got[2].UserID)

	got, err = svc.Query(Params{Kind: "login_failed"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Query(Params{Severity: models.SeverityError})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "csrf_failure", got[0].Kind)
}

func TestQuery_OffsetAndLimit(t *testing.T) {
	lines := make([]models.PersistedLogLine, 0, 5)
	for _, ts := range []string{
		"2024-01-01T10:00:00Z",
		"2024-01-02T10:00:00Z",
		"2024-01-03T10:00:00Z",
		"2024-01-04T10:00:00Z",
		"2024-01-05T10:00:00Z",
	} {
		lines = append(lines, line(ts, "login_failed", models.SeverityWarning, ts[:10]))
	}
	svc := New(stubReader{lines: lines})

	got, err := svc.Query(Params{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-04", got[0].UserID)
	assert.Equal(t, "2024-01-03", got[1].UserID)

	got, err = svc.Query(Params{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExportCSV(t *testing.T) {
	svc := New(stubReader{lines: []models.PersistedLogLine{
		{
			Timestamp: "2024-01-02T10:00:00Z",
			Kind:      "data_export",
			Severity:  models.SeverityInfo,
			UserID:    "7",
			IPAddress: "203.0.113.4",
			Details:   map[string]any{"rows": 250},
		},
	}})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(&buf, Params{}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ExportHeader, records[0])
	assert.Equal(t, "2024-01-02T10:00:00Z", records[1][0])
	assert.Equal(t, "data_export", records[1][1])
	assert.Equal(t, "7", records[1][2])
	assert.Equal(t, "203.0.113.4", records[1][3])
	assert.Equal(t, "info", records[1][4])
	assert.JSONEq(t, `{"rows":250}`, records[1][5])
}

func TestSummarySince(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("2024-01-10T11:00:00Z", "login_failed", models.SeverityWarning, "1"),
		line("2024-01-10T10:00:00Z", "sql_injection_attempt", models.SeverityCritical, "2"),
		line("2024-01-10T09:00:00Z", "csrf_failure", models.SeverityError, "3"),
		line("2024-01-08T09:00:00Z", "csrf_failure", models.SeverityError, "old"),
	}})
	svc.SetClock(func() time.Time { return now })

	sum, err := svc.SummarySince(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalEvents, "events older than the window are excluded")
	assert.Equal(t, 2, sum.CriticalEvents, "error and critical both count")
	assert.True(t, sum.HasCriticalEvents)
}

func TestSummarySince_Quiet(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := New(stubReader{lines: []models.PersistedLogLine{
		line("2024-01-10T11:00:00Z", "login_success", models.SeverityInfo, "1"),
	}})
	svc.SetClock(func() time.Time { return now })

	sum, err := svc.SummarySince(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalEvents)
	assert.Zero(t, sum.CriticalEvents)
	assert.False(t, sum.HasCriticalEvents)
}

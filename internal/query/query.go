// Package query reads the durable security log store and serves filtered,
// paginated views plus CSV export.
package query

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sentinel-systems/secmon/internal/models"
)

// Reader is the read side of the durable store.
type Reader interface {
	ReadAll() ([]models.PersistedLogLine, error)
}

// Service answers queries over the persisted security log.
type Service struct {
	store Reader
	now   func() time.Time
}

// New creates a query Service over the given store.
func New(store Reader) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Params filters and paginates a query. Start and End are inclusive when
// non-zero. A non-positive Limit returns all remaining entries.
type Params struct {
	Start    time.Time
	End      time.Time
	Kind     string
	Severity models.Severity
	Limit    int
	Offset   int
}

// Query reads the entire store, drops malformed lines, applies the time
// range, the kind/severity equality filters, sorts newest-first, then
// applies offset and limit. Entries without a parseable timestamp are
// excluded from range filtering but kept in unfiltered queries.
func (s *Service) Query(p Params) ([]models.PersistedLogLine, error) {
	lines, err := s.store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read security log: %w", err)
	}

	rangeFilter := !p.Start.IsZero() || !p.End.IsZero()
	filtered := make([]models.PersistedLogLine, 0, len(lines))
	for _, line := range lines {
		if rangeFilter {
			t, ok := line.Time()
			if !ok {
				continue
			}
			if !p.Start.IsZero() && t.Before(p.Start) {
				continue
			}
			if !p.End.IsZero() && t.After(p.End) {
				continue
			}
		}
		if p.Kind != "" && line.Kind != p.Kind {
			continue
		}
		if p.Severity != "" && line.Severity != p.Severity {
			continue
		}
		filtered = append(filtered, line)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ti, iok := filtered[i].Time()
		tj, jok := filtered[j].Time()
		if iok && jok {
			return ti.After(tj)
		}
		if iok != jok {
			return iok // parseable timestamps sort before unparseable ones
		}
		return filtered[i].Timestamp > filtered[j].Timestamp
	})

	if p.Offset > 0 {
		if p.Offset >= len(filtered) {
			return []models.PersistedLogLine{}, nil
		}
		filtered = filtered[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(filtered) {
		filtered = filtered[:p.Limit]
	}
	return filtered, nil
}

// ExportHeader is the fixed column set of the CSV export.
var ExportHeader = []string{"Timestamp", "Event Type", "User ID", "IP Address", "Severity", "Details"}

// ExportCSV writes the filtered, newest-first result set as CSV. Details
// are serialized as a nested JSON string within the row.
func (s *Service) ExportCSV(w io.Writer, p Params) error {
	lines, err := s.Query(p)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, line := range lines {
		details, err := json.Marshal(line.Details)
		if err != nil {
			details = []byte("{}")
		}
		row := []string{
			line.Timestamp,
			line.Kind,
			line.UserID,
			line.IPAddress,
			string(line.Severity),
			string(details),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Summary aggregates recent activity for the dashboard endpoint.
type Summary struct {
	TotalEvents       int  `json:"total_events_24h"`
	CriticalEvents    int  `json:"critical_events_count"`
	HasCriticalEvents bool `json:"has_critical_events"`
}

// SummarySince counts events in the trailing window. Critical here means
// severity error or above, matching the dashboard's alerting threshold.
func (s *Service) SummarySince(window time.Duration) (Summary, error) {
	end := s.now()
	lines, err := s.Query(Params{Start: end.Add(-window), End: end})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{TotalEvents: len(lines)}
	for _, line := range lines {
		if line.Severity.AtLeast(models.SeverityError) {
			sum.CriticalEvents++
		}
	}
	sum.HasCriticalEvents = sum.CriticalEvents > 0
	return sum, nil
}

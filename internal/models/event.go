package models

import "time"

// Severity is the ordinal urgency level of a security event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRanks orders severities for threshold comparisons.
var severityRanks = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns the numeric rank of the severity (info=0 .. critical=3).
// Unknown severities rank as info.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// AtLeast reports whether s ranks at or above min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity converts a string to a Severity.
// Returns SeverityInfo and false for unrecognized values.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	if sev.Valid() {
		return sev, true
	}
	return SeverityInfo, false
}

// SecurityEvent is the unit of record for the monitoring pipeline.
// Events are immutable after creation; (Timestamp, Seq) is the ordering
// identity since multiple events can share a timestamp at sub-resolution
// granularity.
type SecurityEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Seq       uint64         `json:"-"`
	Kind      string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Details   map[string]any `json:"details"`
}

// PersistedLogLine is one JSON object per line in the durable store.
// EventName is denormalized from the catalog at write time so historical
// records remain stable even if a display name later changes.
type PersistedLogLine struct {
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"event_type"`
	EventName string         `json:"event_name"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	Details   map[string]any `json:"details"`
}

// TimestampFormat is the wire format for persisted timestamps.
const TimestampFormat = time.RFC3339Nano

// Time parses the persisted timestamp. The second return value is false
// when the timestamp is absent or unparseable.
func (l PersistedLogLine) Time() (time.Time, bool) {
	if l.Timestamp == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(TimestampFormat, l.Timestamp); err == nil {
		return t, true
	}
	// Older log files carried second-resolution timestamps.
	if t, err := time.Parse("2006-01-02 15:04:05", l.Timestamp); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// NewPersistedLine builds the durable-store representation of an event.
func NewPersistedLine(ev SecurityEvent, eventName string) PersistedLogLine {
	return PersistedLogLine{
		Timestamp: ev.Timestamp.Format(TimestampFormat),
		Kind:      ev.Kind,
		EventName: eventName,
		Severity:  ev.Severity,
		UserID:    ev.UserID,
		IPAddress: ev.IPAddress,
		Details:   ev.Details,
	}
}

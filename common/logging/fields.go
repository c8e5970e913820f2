package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService   = "service"
	FieldUserID    = "user_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldEventType = "event_type"
	FieldSeverity  = "severity"
	FieldOperation = "operation"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventType returns a slog attribute for a security event kind.
func EventType(kind string) slog.Attr {
	return slog.String(FieldEventType, kind)
}

// Severity returns a slog attribute for an event severity.
func Severity(severity string) slog.Attr {
	return slog.String(FieldSeverity, severity)
}

// Operation returns a slog attribute for an extracted operation name.
func Operation(op string) slog.Attr {
	return slog.String(FieldOperation, op)
}

// Package logstore owns the durable security log directory: an append-only
// newline-delimited JSON store, a human-readable text mirror, and the
// archive lifecycle for aged files.
package logstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sentinel-systems/secmon/internal/metrics"
	"github.com/sentinel-systems/secmon/internal/models"
)

const (
	// JSONFileName is the structured newline-delimited JSON store.
	JSONFileName = "security.json"
	// TextFileName is the human-readable mirror of the store.
	TextFileName = "security.log"
	// ArchiveDirName holds rotated log files.
	ArchiveDirName = "archive"

	// DefaultLineFormat renders the text mirror. Recognized placeholders:
	// {timestamp} {level} {message} {event_type} {user_id} {ip_address}.
	DefaultLineFormat = "{timestamp} [{level}] {message} - {event_type} (User: {user_id}, IP: {ip_address})"
)

// Store appends security events to the log directory and reads them back.
// Appends are serialized by a single mutex so concurrent writers never
// interleave partial lines.
type Store struct {
	mu         sync.Mutex
	dir        string
	lineFormat string
	logger     *slog.Logger
	now        func() time.Time
}

// Options configures a Store.
type Options struct {
	// Dir is the log directory. Relative paths are resolved against BaseDir.
	Dir string
	// BaseDir anchors relative Dir values. Defaults to the working directory.
	BaseDir string
	// LineFormat is the text-mirror template. Empty uses DefaultLineFormat.
	LineFormat string
	Logger     *slog.Logger
}

// New creates a Store, creating the log directory if needed.
func New(opts Options) (*Store, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "security_logs"
	}
	if !filepath.IsAbs(dir) {
		base := opts.BaseDir
		if base == "" {
			base = "."
		}
		dir = filepath.Join(base, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	format := opts.LineFormat
	if format == "" {
		format = DefaultLineFormat
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		dir:        dir,
		lineFormat: format,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Dir returns the resolved log directory.
func (s *Store) Dir() string {
	return s.dir
}

// SetClock overrides the time source. Used by rotation tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Append writes one persisted line to the JSON store and mirrors it to the
// text log. The JSON append is the durable write; a mirror failure is
// logged and does not fail the append.
func (s *Store) Append(line models.PersistedLogLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal log line: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := appendLine(filepath.Join(s.dir, JSONFileName), data); err != nil {
		return fmt.Errorf("append structured log: %w", err)
	}

	text := s.formatTextLine(line)
	if err := appendLine(filepath.Join(s.dir, TextFileName), []byte(text)); err != nil {
		s.logger.Error("failed to append text security log", slog.String("error", err.Error()))
	}
	return nil
}

func appendLine(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// formatTextLine renders the configured line template for one event.
func (s *Store) formatTextLine(line models.PersistedLogLine) string {
	r := strings.NewReplacer(
		"{timestamp}", line.Timestamp,
		"{level}", strings.ToUpper(string(line.Severity)),
		"{message}", "SECURITY: "+line.EventName,
		"{event_type}", line.Kind,
		"{user_id}", line.UserID,
		"{ip_address}", line.IPAddress,
	)
	return r.Replace(s.lineFormat)
}

// ReadAll parses the JSON store line by line. Lines that fail to parse are
// skipped, not fatal: the store must tolerate partial corruption such as a
// truncated last line from a crash mid-write.
func (s *Store) ReadAll() ([]models.PersistedLogLine, error) {
	path := filepath.Join(s.dir, JSONFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open structured log: %w", err)
	}
	defer f.Close()

	var lines []models.PersistedLogLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line models.PersistedLogLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			s.logger.Debug("skipping malformed log line", slog.String("error", err.Error()))
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scan structured log: %w", err)
	}
	return lines, nil
}

// Rotate moves every security*.log and security*.json file in the log
// directory whose modification time is older than now-maxAge into the
// archive subdirectory, renaming it to embed the original modification
// date (YYYYMMDD). Rotation never deletes data, and a failure to move one
// file does not abort rotation of the remaining files.
func (s *Store) Rotate(maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveDir := filepath.Join(s.dir, ArchiveDirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	var candidates []string
	for _, pattern := range []string{"security*.log", "security*.json"} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return fmt.Errorf("list log files: %w", err)
		}
		candidates = append(candidates, matches...)
	}

	cutoff := s.now().Add(-maxAge)
	archived := 0
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		stamp := info.ModTime().UTC().Format("20060102")
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		dest := filepath.Join(archiveDir, fmt.Sprintf("%s_%s%s", stem, stamp, ext))

		if err := os.Rename(path, dest); err != nil {
			s.logger.Error("failed to archive log file",
				slog.String("file", base),
				slog.String("error", err.Error()),
			)
			continue
		}
		archived++
		metrics.LogFilesArchived.Inc()
		s.logger.Info("archived security log",
			slog.String("file", base),
			slog.String("archived_as", filepath.Base(dest)),
		)
	}

	if archived > 0 {
		s.logger.Info("security log rotation complete", slog.Int("archived", archived))
	}
	return nil
}

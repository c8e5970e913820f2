// Package middleware implements the per-request security pipeline:
// IP rate limiting, the coarse permission check, and audit logging.
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/sentinel-systems/secmon/common/httputil"
	"github.com/sentinel-systems/secmon/common/logging"
	"github.com/sentinel-systems/secmon/internal/catalog"
	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/metrics"
	"github.com/sentinel-systems/secmon/internal/ratelimit"
	"github.com/sentinel-systems/secmon/internal/recorder"
)

// maxAuditBodySize bounds how much of a request body is buffered for
// operation-name extraction.
const maxAuditBodySize = 64 * 1024

var operationNameRe = regexp.MustCompile(`(query|mutation)\s+(\w+)`)

// Security runs the request interception pipeline, short-circuiting on the
// first failure: global rate limit, sensitive-path rate limit, permission
// check, then audit logging of the completed exchange.
type Security struct {
	globalLimiter    ratelimit.RateLimiter
	sensitiveLimiter ratelimit.RateLimiter
	recorder         *recorder.Recorder
	logger           *slog.Logger

	sensitivePatterns []*regexp.Regexp
	highRiskOps       []string
	permissionRules   []config.PermissionRule
	auditLogs         bool
}

// NewSecurity builds the interceptor from configuration. Invalid sensitive
// URL patterns are rejected at construction so misconfiguration surfaces
// at start-up rather than per request.
func NewSecurity(
	cfg config.SecurityConfig,
	global, sensitive ratelimit.RateLimiter,
	rec *recorder.Recorder,
	logger *slog.Logger,
) (*Security, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.SensitiveURLPatterns))
	for _, p := range cfg.SensitiveURLPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Security{
		globalLimiter:     global,
		sensitiveLimiter:  sensitive,
		recorder:          rec,
		logger:            logger,
		sensitivePatterns: patterns,
		highRiskOps:       cfg.HighRiskOperations,
		permissionRules:   cfg.PermissionRules,
		auditLogs:         cfg.AuditLogs,
	}, nil
}

// IsSensitiveURL reports whether the path matches a configured sensitive
// pattern and is therefore subject to the stricter rate limit.
func (s *Security) IsSensitiveURL(path string) bool {
	for _, re := range s.sensitivePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// isHighRiskOperation reports whether the request body names a high-risk
// operation.
func (s *Security) isHighRiskOperation(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Query == "" {
		return false
	}
	for _, op := range s.highRiskOps {
		if bytes.Contains([]byte(payload.Query), []byte(op)) {
			return true
		}
	}
	return false
}

// requiredPermission resolves the permission token for a path/method from
// the ordered rule list. First match wins; no match means allow.
func (s *Security) requiredPermission(path, method string) (string, bool) {
	for _, rule := range s.permissionRules {
		if !pathHasPrefix(path, rule.PathPrefix) {
			continue
		}
		if len(rule.Methods) == 0 {
			return rule.Permission, true
		}
		for _, m := range rule.Methods {
			if m == method {
				return rule.Permission, true
			}
		}
	}
	return "", false
}

func pathHasPrefix(path, prefix string) bool {
	return prefix != "" && len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// checkPermissions implements the coarse permission check: unauthenticated
// and staff principals pass; otherwise the principal must hold the
// permission resolved from the rule table.
func (s *Security) checkPermissions(r *http.Request) (string, bool) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil || principal.Staff {
		return "", true
	}
	required, found := s.requiredPermission(r.URL.Path, r.Method)
	if !found {
		return "", true
	}
	if principal.HasPerm(required) {
		return "", true
	}
	return required, false
}

// Handler wraps next with the security pipeline.
func (s *Security) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.GetClientIP(r)

		// 1. Global per-IP rate limit.
		if allowed, err := s.globalLimiter.Allow(r.Context(), "global:"+ip); err == nil && !allowed {
			httputil.WriteError(w, http.StatusTooManyRequests,
				"Too many requests. Please try again later.")
			return
		}

		// 2. Stricter limit for sensitive paths.
		if s.IsSensitiveURL(r.URL.Path) {
			if allowed, err := s.sensitiveLimiter.Allow(r.Context(), "sensitive:"+ip); err == nil && !allowed {
				s.recordRateLimitExceeded(r, ip)
				httputil.WriteError(w, http.StatusTooManyRequests,
					"Too many requests to sensitive endpoint.")
				return
			}
		}

		// 3. Coarse permission check.
		if required, ok := s.checkPermissions(r); !ok {
			s.recordPermissionDenied(r, ip, required)
			httputil.WriteError(w, http.StatusForbidden,
				"You don't have permission to perform this action.")
			return
		}

		// Buffer the body so the audit step can inspect it after the
		// handler has consumed it.
		var body []byte
		if s.auditLogs && r.Body != nil && r.Method == http.MethodPost {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxAuditBodySize))
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
		}

		// 4. Forward and time the request.
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		metrics.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rw.status)).
			Observe(elapsed.Seconds())

		// 5. Audit the completed exchange.
		if s.auditLogs {
			s.auditRequest(r, ip, rw.status, elapsed, body)
		}
	})
}

func (s *Security) recordRateLimitExceeded(r *http.Request, ip string) {
	userID := ""
	if p := PrincipalFromContext(r.Context()); p != nil {
		userID = p.UserID
	}
	_, err := s.recorder.Record(catalog.RateLimitExceeded, recorder.Options{
		UserID:    userID,
		IPAddress: ip,
		Details: map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
			"class":  "sensitive",
		},
	})
	if err != nil {
		s.logger.Error("failed to record rate limit event", logging.Error(err))
	}
}

func (s *Security) recordPermissionDenied(r *http.Request, ip, required string) {
	metrics.PermissionDenials.Inc()
	userID := ""
	if p := PrincipalFromContext(r.Context()); p != nil {
		userID = p.UserID
	}
	_, err := s.recorder.Record(catalog.UnauthorizedAccess, recorder.Options{
		UserID:    userID,
		IPAddress: ip,
		Details: map[string]any{
			"path":                r.URL.Path,
			"method":              r.Method,
			"required_permission": required,
		},
	})
	if err != nil {
		s.logger.Error("failed to record permission denial", logging.Error(err))
	}
}

// auditRequest logs the completed exchange and records a security event
// for requests that match both a sensitive context (sensitive path or a
// 401 status) and a known high-risk operation name.
func (s *Security) auditRequest(r *http.Request, ip string, status int, elapsed time.Duration, body []byte) {
	userID := ""
	if p := PrincipalFromContext(r.Context()); p != nil {
		userID = p.UserID
	}

	operation := extractOperationName(body)

	s.logger.Info("audit",
		logging.UserID(userID),
		logging.Operation(operation),
		logging.Method(r.Method),
		logging.Path(r.URL.Path),
		logging.IP(ip),
		logging.Status(status),
		logging.Duration(elapsed.Milliseconds()),
		slog.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		return
	}
	if !s.IsSensitiveURL(r.URL.Path) && status != http.StatusUnauthorized {
		return
	}
	if !s.isHighRiskOperation(body) {
		return
	}

	_, err := s.recorder.Record(catalog.SuspiciousActivity, recorder.Options{
		UserID:    userID,
		IPAddress: ip,
		Details: map[string]any{
			"operation": operation,
			"path":      r.URL.Path,
			"status":    status,
			"high_risk": true,
		},
	})
	if err != nil {
		s.logger.Error("failed to record high-risk operation", logging.Error(err))
	}
}

// extractOperationName pulls the operation name out of a GraphQL-style
// request body. Returns "unknown" when none can be found.
func extractOperationName(body []byte) string {
	if len(body) == 0 {
		return "unknown"
	}
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Query == "" {
		return "unknown"
	}
	if m := operationNameRe.FindStringSubmatch(payload.Query); len(m) > 2 {
		return m[2]
	}
	return "unknown"
}

// statusRecorder captures the response status for audit logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

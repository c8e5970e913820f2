// Package catalog holds the static registry of security event kinds.
// The set is fixed at process start and never mutated at runtime.
package catalog

import (
	"fmt"
	"sort"

	"github.com/sentinel-systems/secmon/internal/models"
)

// Kind is an immutable catalog entry for one category of security event.
type Kind struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DefaultSeverity models.Severity `json:"severity"`
	Description     string          `json:"description"`
}

// Event kind identifiers.
const (
	LoginSuccess         = "login_success"
	LoginFailed          = "login_failed"
	LoginLockout         = "login_lockout"
	PasswordResetRequest = "password_reset_request"
	PasswordChanged      = "password_changed"
	UserCreated          = "user_created"
	UserDeleted          = "user_deleted"
	AdminLogin           = "admin_login"
	AdminAction          = "admin_action"
	PermissionChange     = "permission_change"
	APIKeyCreated        = "api_key_created"
	APIKeyRevoked        = "api_key_revoked"
	RateLimitExceeded    = "rate_limit_exceeded"
	SuspiciousActivity   = "suspicious_activity"
	BruteForceAttempt    = "brute_force_attempt"
	CSRFFailure          = "csrf_failure"
	XSSAttempt           = "xss_attempt"
	SQLInjectionAttempt  = "sql_injection_attempt"
	UnauthorizedAccess   = "unauthorized_access"
	DataExport           = "data_export"
	ConfigChange         = "config_change"
	PaymentError         = "payment_error"
)

// kinds is the fixed event catalog. Severities are part of the contract.
var kinds = map[string]Kind{
	LoginSuccess:         {LoginSuccess, "Login Success", models.SeverityInfo, "User successfully logged in"},
	LoginFailed:          {LoginFailed, "Login Failed", models.SeverityWarning, "Failed login attempt"},
	LoginLockout:         {LoginLockout, "Account Lockout", models.SeverityWarning, "Account locked after multiple failed login attempts"},
	PasswordResetRequest: {PasswordResetRequest, "Password Reset Request", models.SeverityInfo, "User requested a password reset"},
	PasswordChanged:      {PasswordChanged, "Password Changed", models.SeverityInfo, "User changed their password"},
	UserCreated:          {UserCreated, "User Created", models.SeverityInfo, "New user account created"},
	UserDeleted:          {UserDeleted, "User Deleted", models.SeverityInfo, "User account was deleted"},
	AdminLogin:           {AdminLogin, "Admin Login", models.SeverityInfo, "Administrator logged in"},
	AdminAction:          {AdminAction, "Admin Action", models.SeverityInfo, "Administrator performed an action"},
	PermissionChange:     {PermissionChange, "Permission Change", models.SeverityInfo, "User permissions were modified"},
	APIKeyCreated:        {APIKeyCreated, "API Key Created", models.SeverityInfo, "New API key was generated"},
	APIKeyRevoked:        {APIKeyRevoked, "API Key Revoked", models.SeverityInfo, "API key was revoked"},
	RateLimitExceeded:    {RateLimitExceeded, "Rate Limit Exceeded", models.SeverityWarning, "User exceeded rate limits"},
	SuspiciousActivity:   {SuspiciousActivity, "Suspicious Activity", models.SeverityWarning, "Suspicious activity detected"},
	BruteForceAttempt:    {BruteForceAttempt, "Brute Force Attempt", models.SeverityError, "Potential brute force attack detected"},
	CSRFFailure:          {CSRFFailure, "CSRF Failure", models.SeverityError, "Cross-Site Request Forgery validation failed"},
	XSSAttempt:           {XSSAttempt, "XSS Attempt", models.SeverityError, "Cross-Site Scripting attack attempt detected"},
	SQLInjectionAttempt:  {SQLInjectionAttempt, "SQL Injection Attempt", models.SeverityCritical, "SQL Injection attack attempt detected"},
	UnauthorizedAccess:   {UnauthorizedAccess, "Unauthorized Access", models.SeverityError, "Attempt to access unauthorized resource"},
	DataExport:           {DataExport, "Data Export", models.SeverityInfo, "User data was exported"},
	ConfigChange:         {ConfigChange, "Configuration Change", models.SeverityInfo, "System configuration was changed"},
	PaymentError:         {PaymentError, "Payment Error", models.SeverityWarning, "Error processing payment"},
}

// Lookup returns the catalog entry for the given kind ID.
func Lookup(id string) (Kind, bool) {
	k, ok := kinds[id]
	return k, ok
}

// All returns every catalog entry, ordered by ID.
func All() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the sorted list of known kind IDs.
func IDs() []string {
	out := make([]string, 0, len(kinds))
	for id := range kinds {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Validate reports an error if any of the given IDs is not in the catalog.
// Call it at start-up for every kind referenced by configuration or code.
func Validate(ids ...string) error {
	for _, id := range ids {
		if _, ok := kinds[id]; !ok {
			return fmt.Errorf("unknown security event kind: %s", id)
		}
	}
	return nil
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sentinel-systems/secmon/common/httputil"
)

type contextKey string

const principalKey contextKey = "principal"

var ErrInvalidToken = errors.New("invalid token")

// Principal is the narrow view of an authenticated caller the security
// pipeline needs. Authentication mechanics (token issuance, sessions) are
// external collaborators.
type Principal struct {
	UserID      string
	Staff       bool
	Permissions []string
}

// HasPerm reports whether the principal holds the given permission token.
func (p *Principal) HasPerm(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Claims is the JWT payload carrying the principal.
type Claims struct {
	UserID      string   `json:"user_id"`
	Staff       bool     `json:"staff"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator resolves principals from bearer tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator verifying HS256 tokens signed
// with secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken validates a bearer token and returns its principal.
func (a *Authenticator) ParseToken(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return &Principal{
		UserID:      claims.UserID,
		Staff:       claims.Staff,
		Permissions: claims.Permissions,
	}, nil
}

// Resolve attaches the principal from the Authorization header to the
// request context when a valid bearer token is present. Requests without
// a token pass through unauthenticated.
func (a *Authenticator) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if principal, err := a.ParseToken(token); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff guards admin endpoints: the caller must present a valid
// token for a staff principal.
func (a *Authenticator) RequireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		principal, err := a.ParseToken(token)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if !principal.Staff {
			httputil.WriteError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal, or nil when the request is
// unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

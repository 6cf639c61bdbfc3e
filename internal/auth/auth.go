// Package auth verifies bearer JWTs and gates handlers by role. Identity is
// issued upstream; this package only validates the signature and projects the
// groups claim onto the role hierarchy.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/golang-jwt/jwt/v5"
)

// Role orders the access levels. Admin implies Analyst implies Viewer.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleAnalyst
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAnalyst:
		return "analyst"
	case RoleViewer:
		return "viewer"
	default:
		return "none"
	}
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

type contextKey struct{}

// FromContext returns the request identity, nil when unauthenticated.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Verifier parses and validates bearer tokens with an HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier over the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates the raw token and extracts the identity. Only HMAC signing
// methods are accepted.
func (v *Verifier) Parse(raw string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt secret not configured")
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	id := &Identity{Role: roleFromGroups(groupsClaim(claims))}
	if sub, err := claims.GetSubject(); err == nil {
		id.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if id.Role == RoleNone {
		return nil, fmt.Errorf("token carries no recognized group")
	}
	return id, nil
}

// groupsClaim reads the groups claim as either a JSON array or a
// comma-delimited string; identity providers emit both shapes.
func groupsClaim(claims jwt.MapClaims) []string {
	switch v := claims["groups"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, g := range v {
			if s, ok := g.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(v, ",")
	default:
		return nil
	}
}

// roleFromGroups keeps the highest role named by any group.
func roleFromGroups(groups []string) Role {
	role := RoleNone
	for _, g := range groups {
		var r Role
		switch strings.ToLower(strings.TrimSpace(g)) {
		case "admin", "admins":
			r = RoleAdmin
		case "analyst", "analysts":
			r = RoleAnalyst
		case "viewer", "viewers":
			r = RoleViewer
		}
		if r > role {
			role = r
		}
	}
	return role
}

// Middleware authenticates every request and rejects callers below the
// minimum role. The health endpoint is mounted outside this middleware.
func (v *Verifier) Middleware(minimum Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			id, err := v.Parse(raw)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if id.Role < minimum {
				httputil.Error(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("requires %s role", minimum))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
		})
	}
}

// RequireRole gates a route group on an already-authenticated identity. Use
// inside a router that carries Middleware.
func RequireRole(minimum Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
				return
			}
			if id.Role < minimum {
				httputil.Error(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("requires %s role", minimum))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

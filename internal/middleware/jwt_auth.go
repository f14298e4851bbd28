// Package middleware authenticates requests and enforces the role
// predicate each operation requires.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const ctxIdentityKey contextKey = "identity"

// Identity is the verified caller the ledger trusts: who is calling and
// with which role.
type Identity struct {
	AccountID uuid.UUID
	Role      string
}

// TokenValidator verifies a bearer token and returns the account id and
// role it carries.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

// JWTAuth authenticates requests by validating the Bearer token and
// storing the caller's identity in the request context.
func JWTAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			accountID, role, err := validator.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), &Identity{AccountID: accountID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role differs from the one the wrapped
// operation demands. This is the single authorization gate; handlers only
// add ownership checks on top.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromCtx(r.Context())
			if id == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if id.Role != role {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromCtx returns the authenticated identity or nil.
func IdentityFromCtx(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxIdentityKey).(*Identity)
	return id
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

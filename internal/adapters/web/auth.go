package web

import (
	"context"
	"net/http"
	"strings"

	"bikeshop-pos/internal/auth"
	"bikeshop-pos/internal/core"
)

type authClaimsKey struct{}

// AuthClaims holds the authenticated operator's identity extracted from the JWT.
type AuthClaims struct {
	UserID int
	Role   core.Role
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// bearerToken returns the token from the Authorization header, falling back to the
// auth_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth is chi middleware that validates the operator token and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims, err := auth.Parse(h.jwtSecret, raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{
			UserID: claims.UserID,
			Role:   core.Role(claims.Role),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns 403 unless the authenticated operator holds one of roles.
func RequireRole(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := authFromContext(r.Context())
			if claims == nil {
				writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, "insufficient permissions", "FORBIDDEN", http.StatusForbidden)
		})
	}
}

// me handles GET /api/auth/me and returns the current operator.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, user)
}

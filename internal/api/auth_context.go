package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// principalKey is the context key for the authenticated caller.
const principalKey ctxKey = "principal"

// principal is the verified caller of a request.
type principal struct {
	UserID    string
	SessionID string
	IsAdmin   bool
}

func setPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func getPrincipal(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey).(principal)
	return p, ok && p.UserID != ""
}

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return p.UserID, nil
}

// RequireViewer returns the caller as a labeling viewer, or 401.
func RequireViewer(ctx context.Context) (labeling.Viewer, error) {
	p, ok := getPrincipal(ctx)
	if !ok {
		return labeling.Viewer{}, huma.Error401Unauthorized("Authentication required")
	}
	return labeling.Viewer{UserID: p.UserID, IsAdmin: p.IsAdmin}, nil
}

// RequireAdmin validates the caller is authenticated and an admin.
func RequireAdmin(ctx context.Context) (labeling.Viewer, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return v, err
	}
	if !v.IsAdmin {
		return v, domainerrors.Forbidden("Admin access required")
	}
	return v, nil
}

// authMiddleware returns a middleware that validates Bearer tokens and stores
// the caller in context. If no token is present or it is invalid, the request
// continues anonymously and handlers that need a caller reject it.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, claims, err := auth.VerifyAccessToken(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := setPrincipal(r.Context(), principal{
				UserID:    user.ID,
				SessionID: claims.SessionID,
				IsAdmin:   user.IsAdmin(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

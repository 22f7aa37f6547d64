package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"timetrack/internal/domain/auth"
	"timetrack/internal/platform/revocation"
	"timetrack/internal/transport/http/api"
)

type ctxKey int

const ctxKeyUser ctxKey = iota

// Auth attaches the verified caller to the request. Requests without a
// bearer token pass through anonymous; a bad, expired or revoked token is
// rejected.
func Auth(secret string, revoked revocation.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				unauthorized(w, r, "invalid_token", "malformed authorization header")
				return
			}

			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				unauthorized(w, r, "invalid_token", "invalid or expired token")
				return
			}
			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					log.Error().Err(err).Str("requestId", GetRequestID(r.Context())).Msg("revocation lookup failed")
					api.Fail(w, http.StatusServiceUnavailable, "auth_unavailable", "authentication temporarily unavailable", GetRequestID(r.Context()))
					return
				}
				if isRevoked {
					unauthorized(w, r, "token_revoked", "token has been revoked")
					return
				}
			}

			ctx := WithUser(r.Context(), claims.User())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			unauthorized(w, r, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="timetrack"`)
	api.Fail(w, http.StatusUnauthorized, code, message, GetRequestID(r.Context()))
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"timetrack/internal/platform/requestctx"
	"timetrack/internal/transport/http/shared"
)

const maxRequestIDLength = 128

// RequestID echoes a caller-supplied X-Request-ID or assigns one, and stores
// it with the client IP for audit records further down.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestctx.WithRequestID(r.Context(), reqID)
		ctx = requestctx.WithClientIP(ctx, shared.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}

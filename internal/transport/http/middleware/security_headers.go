package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

func SecureHeaders(isProd bool) func(http.Handler) http.Handler {
	s := secure.New(secure.Options{
		IsDevelopment:         !isProd,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            63072000,
		STSIncludeSubdomains:  true,
		STSPreload:            true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return s.Handler
}

// CORS allows the configured origins only; an empty list disables
// cross-origin access.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

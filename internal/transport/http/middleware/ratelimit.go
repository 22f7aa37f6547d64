package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	stdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"timetrack/internal/transport/http/api"
	"timetrack/internal/transport/http/shared"
)

const rateLimitPrefix = "timetrack:ratelimit"

// RateLimit limits requests per caller at rateFormatted ("120-M"). Counters
// live in Redis when a client is given so replicas share them. An empty
// rate disables limiting.
func RateLimit(rateFormatted string, client *redis.Client) (func(http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(actorOrIPKey),
		stdlib.WithLimitReachedHandler(limitReached),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("rate limit store failed")
			api.Fail(w, http.StatusServiceUnavailable, "rate_limit_unavailable", "rate limiter unavailable", GetRequestID(r.Context()))
		}),
	)
	return mw.Handler, nil
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	if reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64); err == nil {
		w.Header().Set("Retry-After", strconv.FormatInt(max(reset-time.Now().Unix(), 1), 10))
	}
	log.Warn().
		Str("key", actorOrIPKey(r)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("rate limit exceeded")
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
}

package middleware

import (
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"net/http"
	"time"
	"townmarket/internal/app/logger"
)

// Log installs a request scoped logger with a request id and writes one
// access line per request.
func Log(l logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return alice.New(
			hlog.NewHandler(l.Logger),
			hlog.RequestIDHandler("request_id", "X-Request-Id"),
			hlog.MethodHandler("http_method"),
			hlog.URLHandler("url"),
			hlog.RemoteAddrHandler("remote_addr"),
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Int("http_status", status).
					Int("size", size).
					Dur("duration", duration).
					Msg("Request served")
			}),
		).Then(next)
	}
}

package middleware

import (
	"net/http"
	"strings"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/handler"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/session"
)

func Auth(jwt session.Reader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.Get(r.Context(), "Middleware.Auth")

			reqHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(reqHeader, "Bearer ")
			if token == "" || token == reqHeader {
				log.Debug().Msg("Invalid Authorization header")
				handler.WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
				return
			}

			u, err := jwt.Read(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				handler.WriteError(w, apperr.ErrUnauthorized, http.StatusUnauthorized)
				return
			}

			log.Debug().Str("user_id", u.ID).Msg("User authorized")
			next.ServeHTTP(w, r.WithContext(handler.WithContextUser(r.Context(), u)))
		})
	}
}

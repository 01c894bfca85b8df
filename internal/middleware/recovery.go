package middleware

import (
	"net/http"
	"runtime/debug"

	"citylink/internal/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

func Recoverer(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log := hlog.FromRequest(r)
					if log.GetLevel() == zerolog.Disabled {
						log = &l
					}
					log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("panic")
					utils.Error(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"citylink/internal/utils"

	"github.com/rs/zerolog/hlog"
)

// Health reports liveness; when ping is set it also checks the database.
func Health(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("health: database unreachable")
				utils.Error(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		utils.Success(w, http.StatusOK, "", map[string]any{"status": "ok", "time": time.Now().UTC()})
	}
}

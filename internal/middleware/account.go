package middleware

import (
	"context"
	"errors"
	"net/http"

	"citylink/internal/models"
	"citylink/internal/repository"
	"citylink/internal/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// UserLookup resolves the account behind a verified token.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// LoadAccount runs after WithAuth and reloads the token's user. Missing or
// deactivated accounts continue as anonymous, so the guards answer 401; the
// stored role replaces the role baked into the token.
func LoadAccount(log zerolog.Logger, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, _, ok := Identity(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			u, err := users.GetByID(r.Context(), uid)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				log.Debug().Str("uid", uid).Msg("token for unknown account")
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), "", "")))
				return
			case err != nil:
				hlog.FromRequest(r).Error().Err(err).Str("uid", uid).Msg("account lookup failed")
				utils.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			if !u.Active {
				log.Debug().Str("uid", uid).Msg("token for deactivated account")
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), "", "")))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u.ID, u.Role)))
		})
	}
}

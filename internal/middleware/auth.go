package middleware

import (
	"context"
	"net/http"
	"strings"

	"citylink/internal/utils"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	CtxUserID ctxKey = "uid"
	CtxRole   ctxKey = "role"
)

// WithAuth reads "Authorization: Bearer <token>" and, when it verifies as an
// access token, stores the user id and role in the request context. It never
// rejects: guards further down decide.
func WithAuth(log zerolog.Logger, tokens *utils.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			tok, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(tok) == "" {
				next.ServeHTTP(w, r) // unauthenticated; handlers can decide
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(tok), utils.AccessAudience)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.UserID, claims.Role)))
		})
	}
}

// WithIdentity stores an authenticated user in ctx.
func WithIdentity(ctx context.Context, uid, role string) context.Context {
	ctx = context.WithValue(ctx, CtxUserID, uid)
	return context.WithValue(ctx, CtxRole, role)
}

// Identity returns the authenticated user id and role, if any.
func Identity(ctx context.Context) (uid, role string, ok bool) {
	uid, _ = ctx.Value(CtxUserID).(string)
	role, _ = ctx.Value(CtxRole).(string)
	return uid, role, uid != ""
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"citylink/internal/service"
	"citylink/internal/utils"

	"github.com/rs/zerolog/hlog"
)

// writeError maps service errors onto status codes. Unknown errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.Invalid(w, "Validation failed", ve.Fields)
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, service.ErrSelfAction):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		utils.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		utils.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		utils.Error(w, http.StatusConflict, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

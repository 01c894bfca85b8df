package utils

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Success(w http.ResponseWriter, status int, msg string, data any) {
	JSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{Success: false, Message: msg})
}

// Invalid answers 400 with a field error list.
func Invalid(w http.ResponseWriter, msg string, errs any) {
	JSON(w, http.StatusBadRequest, Envelope{Success: false, Message: msg, Errors: errs})
}

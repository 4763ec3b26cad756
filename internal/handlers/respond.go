package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
)

// envelope is the uniform response shape: {"success": true, "data": ...} on
// the happy path, {"success": false, "error": {...}} otherwise.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "error", err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the log, not the response.
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: apperr.Code(err), Message: message},
	})
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/model"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("handler")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugw("failed to write response", "error", err)
	}
}

// writeError maps the error class to a status code and writes model.ErrorResponse.
func writeError(w http.ResponseWriter, err error) {
	code := model.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "AUTHENTICATION":
		status = http.StatusUnauthorized
	case "STATE":
		status = http.StatusConflict
	case "NOT_FOUND":
		status = http.StatusNotFound
	case "VALIDATION":
		status = http.StatusBadRequest
	case "REJECTED":
		status = http.StatusForbidden
	case "SUBMISSION":
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Code: code})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed. Should be "+method, http.StatusMethodNotAllowed)
		return false
	}
	return true
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/skuld/internal/domain"
	"github.com/dukerupert/skuld/internal/middleware"
)

// errorBody is the wire shape of all error responses.
type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps a domain error onto an HTTP status and JSON body.
// Internal errors are logged with detail and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if fields := domain.GetValidationFields(err); fields != nil {
		var body errorBody
		body.Error.Code = domain.EINVALID
		body.Error.Message = "validation failed"
		body.Error.Fields = fields
		respondJSON(w, http.StatusBadRequest, body)
		return
	}

	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	logger := middleware.GetLogger(r.Context())
	if status >= 500 {
		logger.Error("request failed", "error", err, "code", code, "status", status)
	} else {
		logger.Info("request rejected", "error", err, "code", code, "status", status)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = domain.ErrorMessage(err)
	respondJSON(w, status, body)
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Package httputil centralizes JSON response writing and domain error
// translation so handlers stay thin.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "stocktake/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:      http.StatusBadRequest,
	dErrors.CodeInvalidInput:    http.StatusBadRequest,
	dErrors.CodeMissingOperator: http.StatusBadRequest,
	dErrors.CodeInvalidLocation: http.StatusBadRequest,
	dErrors.CodeNoActiveSession: http.StatusConflict,
	dErrors.CodeNotFound:        http.StatusNotFound,
	dErrors.CodeConflict:        http.StatusConflict,
	dErrors.CodeTimeout:         http.StatusGatewayTimeout,
	dErrors.CodeUnavailable:     http.StatusServiceUnavailable,
	dErrors.CodeRemoteRejected:  http.StatusUnprocessableEntity,
	dErrors.CodeInternal:        http.StatusInternalServerError,
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON body. Internal
// errors omit the description so store details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Message
		} else {
			body["error_description"] = err.Error()
		}
	}
	WriteJSON(w, status, body)
}

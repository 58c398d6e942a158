package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/huffmsa/nuts"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondMessage writes a {"success": true} response.
func respondMessage(w http.ResponseWriter, format string, args ...any) {
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: fmt.Sprintf(format, args...)})
}

// respondError writes a {"success": false} response.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondErr maps a control error to its status code.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, errorStatus(err), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, nuts.ErrNotFound), errors.Is(err, nuts.ErrUnknownWorkflow):
		return http.StatusNotFound
	case errors.Is(err, nuts.ErrUnknownJob), errors.Is(err, nuts.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, nuts.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

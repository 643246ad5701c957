package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"imaged/internal/conditioning"
	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/params"
	"imaged/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// errorResponse classifies err into a status code and payload.
func errorResponse(err error) types.ErrorResponse {
	var (
		countErr  *conditioning.CountError
		fieldErr  *conditioning.FieldError
		unknown   *params.UnknownFieldError
		typeErr   *params.FieldTypeError
		presetErr *gateway.UnknownPresetError
		he        HTTPError
	)
	resp := types.ErrorResponse{Error: err.Error()}
	switch {
	case errors.As(err, &countErr):
		resp.Code, resp.Field = http.StatusUnprocessableEntity, "control_inputs"
	case errors.As(err, &fieldErr):
		idx := fieldErr.Index
		resp.Code, resp.Field, resp.Index = http.StatusUnprocessableEntity, fieldErr.Field, &idx
	case errors.As(err, &unknown):
		resp.Code, resp.Field = http.StatusUnprocessableEntity, unknown.Field
	case errors.As(err, &typeErr):
		resp.Code, resp.Field = http.StatusUnprocessableEntity, typeErr.Field
	case errors.As(err, &presetErr):
		resp.Code, resp.Field = http.StatusUnprocessableEntity, "preset"
	case dispatch.IsTooBusy(err):
		resp.Code = http.StatusTooManyRequests
	case dispatch.IsJobNotFound(err):
		resp.Code = http.StatusNotFound
	case dispatch.IsDispatchTimeout(err):
		resp.Code = http.StatusGatewayTimeout
	case dispatch.IsGenerationFailed(err):
		resp.Code = http.StatusBadGateway
	case errors.Is(err, dispatch.ErrClosed):
		resp.Code = http.StatusServiceUnavailable
	case errors.As(err, &he):
		resp.Code = he.StatusCode()
	default:
		resp.Code = http.StatusInternalServerError
	}
	return resp
}

// writeError maps err to its HTTP status and writes the JSON payload.
func writeError(w http.ResponseWriter, err error) int {
	resp := errorResponse(err)
	if resp.Code == http.StatusTooManyRequests {
		IncrementBackpressure("admission")
	}
	writeJSON(w, resp.Code, resp)
	return resp.Code
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

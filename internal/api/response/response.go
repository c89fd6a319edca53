package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/fastquant/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: Detail(err)}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Fail writes an error response with the status derived from err.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

// Detail converts err into the wire error detail.
func Detail(err error) ErrorDetail {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}
	return detail
}

// StatusFor maps domain error codes to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrResultNotFound), errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBadRequest),
		errors.Is(err, core.ErrInvalidParams),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrSeriesMismatch),
		errors.Is(err, core.ErrProviderNotFound),
		errors.Is(err, core.ErrNoData):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrProviderFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

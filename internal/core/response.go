package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"gymdesk/internal/types"
)

// Request bodies above this size are rejected before decoding.
const maxRequestBodySize = 1 << 20

// APIResponse wraps every successful payload the API returns.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
}

// APIErrorResponse wraps every error payload the API returns.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-facing shape of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON marshals data and writes it with the given status. The body is
// marshalled before the header is written so a marshalling failure can
// still produce a well-formed 500 instead of a truncated 2xx.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error renders err to the client. An error that is, or wraps, a
// *types.AppError keeps its code, message and details and maps to the
// status that code implies. Anything else becomes an opaque 500; the
// original message never reaches the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
		status = appErr.HTTPStatus()
	}

	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON reads the request body into dst. The body is capped at 1 MB,
// unknown fields are rejected, and exactly one JSON value is accepted.
// Every failure mode comes back as a validation_invalid_json AppError so
// handlers can pass it straight to Error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeFailure(err)
	}
	if dec.More() {
		return badJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func badJSON(msg string, cause error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, msg, cause)
}

// decodeFailure distinguishes the json.Decoder failure modes that deserve
// their own client message. Everything lands on the same error code.
func decodeFailure(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return badJSON("request body must not exceed 1MB", err)
	case errors.As(err, &syntaxErr):
		return badJSON("malformed JSON in request body", err)
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidJSON,
			"invalid value for field",
			err,
			map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			},
		)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return badJSON("unknown field in request body: "+field, err)
	case errors.Is(err, io.EOF):
		return badJSON("request body must not be empty", err)
	}
	return badJSON("invalid JSON in request body", err)
}

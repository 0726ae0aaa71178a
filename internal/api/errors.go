package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/rentwise/rentwise-server/internal/errors"
	"github.com/rentwise/rentwise-server/internal/store"
)

// retryAfterSeconds is advertised on retriable failures.
const retryAfterSeconds = 1

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status    int
	Code      string `json:"code" doc:"Machine-readable error code"`
	Message   string `json:"message" doc:"Human-readable error message"`
	Details   any    `json:"details,omitempty" doc:"Additional error details"`
	Retriable bool   `json:"retriable,omitempty" doc:"Whether the request may be retried with backoff"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// GetHeaders implements huma.HeadersError.
func (e *APIError) GetHeaders() http.Header {
	if !e.Retriable {
		return nil
	}
	h := http.Header{}
	h.Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	return h
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// FieldError describes one rejected request parameter.
type FieldError struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	var fields []FieldError
	for _, err := range errs {
		if apiErr := fromDomainError(err); apiErr != nil {
			return apiErr
		}
		if apiErr := fromStoreError(err); apiErr != nil {
			return apiErr
		}

		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			fields = append(fields, FieldError{Location: detail.Location, Message: detail.Message})
		}
	}

	code := statusToCode(status)
	apiErr := &APIError{
		status:    status,
		Code:      string(code),
		Message:   message,
		Retriable: code.Retriable(),
	}
	if len(fields) > 0 {
		apiErr.Details = fields
	}
	return apiErr
}

func fromDomainError(err error) *APIError {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return nil
	}
	return &APIError{
		status:    domainErr.HTTPStatus(),
		Code:      string(domainErr.Code),
		Message:   domainErr.Message,
		Details:   domainErr.Details,
		Retriable: domainErr.Code.Retriable(),
	}
}

// fromStoreError covers store errors that reach a handler without passing
// through a service translation.
func fromStoreError(err error) *APIError {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		return nil
	}

	var code domainerrors.Code
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = domainerrors.CodeNotFound
	case errors.Is(err, store.ErrNotPending):
		code = domainerrors.CodeAlreadyProcessed
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrPropertyOccupied):
		code = domainerrors.CodeConflict
	case errors.Is(err, store.ErrUnavailable):
		code = domainerrors.CodeStorageUnavailable
	case errors.Is(err, store.ErrInvalidInput):
		code = domainerrors.CodeValidation
	default:
		code = statusToCode(storeErr.HTTPCode())
	}

	return &APIError{
		status:    code.HTTPStatus(),
		Code:      string(code),
		Message:   storeErr.Message,
		Retriable: code.Retriable(),
	}
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case http.StatusForbidden:
		return domainerrors.CodeForbidden
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeConflict
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	case http.StatusServiceUnavailable:
		return domainerrors.CodeStorageUnavailable
	default:
		return domainerrors.CodeInternal
	}
}

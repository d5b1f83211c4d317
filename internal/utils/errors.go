package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Error kinds. Every handler failure maps onto exactly one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// APIError carries a client-facing message together with its kind.
type APIError struct {
	Kind    error
	Message string
}

func (e *APIError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// NewValidationError returns an ErrValidation with a client-facing message.
func NewValidationError(message string) error {
	return &APIError{Kind: ErrValidation, Message: message}
}

// NewNotFoundError returns an ErrNotFound with a client-facing message.
func NewNotFoundError(message string) error {
	return &APIError{Kind: ErrNotFound, Message: message}
}

// NewForbiddenError returns an ErrForbidden with a client-facing message.
func NewForbiddenError(message string) error {
	return &APIError{Kind: ErrForbidden, Message: message}
}

// RespondError writes the response matching err's kind. Anything that is not an
// APIError is reported as a generic server error so internals never leak.
func RespondError(c *gin.Context, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		InternalServerError(c, "Server error")
		return
	}

	switch {
	case errors.Is(err, ErrValidation):
		BadRequest(c, apiErr.Message)
	case errors.Is(err, ErrUnauthorized):
		Unauthorized(c, apiErr.Message)
	case errors.Is(err, ErrForbidden):
		Forbidden(c, apiErr.Message)
	case errors.Is(err, ErrNotFound):
		NotFound(c, apiErr.Message)
	default:
		InternalServerError(c, "Server error")
	}
}

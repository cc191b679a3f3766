package revue

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument is returned when a caller passes a value the API cannot accept.
	// No request is sent when this error is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch is returned when an exports payload does not have the documented tuple layout.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Error represents an error returned by the Revue API.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Body)
}

func isErrorStatus(err error, status int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

// IsBadRequest checks if the error represents a 400 Bad Request response.
func IsBadRequest(err error) bool {
	return isErrorStatus(err, http.StatusBadRequest)
}

// IsUnauthorized checks if the error represents a 401 Unauthorized response.
func IsUnauthorized(err error) bool {
	return isErrorStatus(err, http.StatusUnauthorized)
}

// IsNotFound checks if the error represents a 404 Not Found response.
func IsNotFound(err error) bool {
	return isErrorStatus(err, http.StatusNotFound)
}

// IsUnprocessable checks if the error represents a 422 Unprocessable Entity response.
// Revue answers with 422 when a subscriber payload is rejected.
func IsUnprocessable(err error) bool {
	return isErrorStatus(err, http.StatusUnprocessableEntity)
}

// IsInvalidArgument reports whether err was produced by client-side validation.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

package model

import "errors"

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error classes shared by every service. Callers wrap them with context and
// match with errors.Is.
var (
	// ErrAuthentication is returned on a wrong password (unlock, verify, export, import).
	ErrAuthentication = errors.New("wrong password")

	// ErrLocked is returned when an operation needs an unlocked keyring.
	ErrLocked = errors.New("keyring is locked, unlock it first")

	// ErrState is returned for operations attempted in the wrong lifecycle state.
	ErrState = errors.New("invalid state")

	// ErrNotFound is returned when a request id or account is unknown.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input, before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrRejected is the outcome of a declined or closed approval surface.
	ErrRejected = errors.New("rejected from user")

	// ErrSubmission marks node failures after a transaction was signed.
	ErrSubmission = errors.New("transaction submission failed")
)

// ErrorCode maps an error to the code field of ErrorResponse.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "AUTHENTICATION"
	case errors.Is(err, ErrLocked), errors.Is(err, ErrState):
		return "STATE"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrRejected):
		return "REJECTED"
	case errors.Is(err, ErrSubmission):
		return "SUBMISSION"
	default:
		return ""
	}
}

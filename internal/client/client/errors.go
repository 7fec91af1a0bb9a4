package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrRemote             = errors.New("remote error")
	ErrTransferRejected   = errors.New("transfer rejected")
	ErrPaymentNotVerified = errors.New("payment not verified")
)

// RemoteError is a non-2xx answer from the backend.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote error: status=%d: %s", e.StatusCode, e.Message)
}

// Is lets callers match a RemoteError against the package sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnavailable:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	case ErrInvalidCredentials:
		return e.StatusCode == http.StatusBadRequest && (e.Code == "invalid_grant" || e.Code == "invalid_credentials")
	}
	return false
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

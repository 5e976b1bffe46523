package resilience

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/rotisserie/eris"
)

// TransientError marks a failure that may succeed if tried again.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable. status is the HTTP status, or 0.
func Transient(err error, status int) error {
	return &TransientError{Status: status, Err: err}
}

// IsTransient reports whether err is marked transient or is a network
// failure worth retrying, such as a timeout or a reset connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// 408, 429 and 5xx except 501.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return true
	case code == http.StatusNotImplemented:
		return false
	default:
		return code >= 500 && code < 600
	}
}

// StatusError reports an unexpected HTTP status from url. It is transient
// when RetryableStatus allows.
func StatusError(code int, url string) error {
	err := eris.Errorf("unexpected status %d from %s", code, url)
	if RetryableStatus(code) {
		return Transient(err, code)
	}
	return err
}

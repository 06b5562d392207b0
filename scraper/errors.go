package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrAllIdentitiesExhausted is returned when every configured identity is
// banned or was just used.
var ErrAllIdentitiesExhausted = errors.New("all identities exhausted")

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a transport level failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRejected indicates the target answered 503 to the current identity.
type ErrRejected struct {
	Identity string
}

func (e ErrRejected) Error() string {
	return "rejected: service unavailable"
}

// HTTPError is a non-2xx status other than 503. It is never retried.
type HTTPError struct {
	Status int
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Status, http.StatusText(e.Status))
}

// ErrRetriesExhausted wraps the last attempt's error once every attempt failed.
type ErrRetriesExhausted struct {
	Attempts int
	Err      error
}

func (e ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e ErrRetriesExhausted) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt may follow err.
func retryable(err error) bool {
	var (
		timeout  ErrTimeout
		conn     ErrConnection
		rejected ErrRejected
	)
	return errors.As(err, &timeout) || errors.As(err, &conn) || errors.As(err, &rejected)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, ErrAllIdentitiesExhausted) {
		return "identities_exhausted"
	}
	var exhausted ErrRetriesExhausted
	if errors.As(err, &exhausted) {
		return "retries_exhausted"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rejected ErrRejected
	if errors.As(err, &rejected) {
		return "rejected"
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return "http_status"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// classifyError maps a raw collector error and response status into the
// fetch error taxonomy. identity is recorded on rejections.
func classifyError(err error, statusCode int, identity string) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	switch {
	case statusCode == http.StatusServiceUnavailable:
		return ErrRejected{Identity: identity}
	case statusCode != 0 && (statusCode < 200 || statusCode > 299):
		return HTTPError{Status: statusCode}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection{Err: err}
	}
	if err == nil {
		return nil
	}
	return ErrConnection{Err: err}
}

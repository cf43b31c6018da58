package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass is a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and requests blocked by
	// the local rate limit gate.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents requests that could not complete.
	ErrorClassNetwork ErrorClass = "network"
)

// ErrRateLimited is wrapped by the FetchError returned when the local gate
// blocks a request.
var ErrRateLimited = errors.New("request blocked: rate limit budget exhausted")

// FetchError is a failed catalog request. ErrorClassNetwork is a transport
// error; every other class is an HTTP status error.
type FetchError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("catalog %s error: %s: %v", e.ErrorClass, e.Message, e.Err)
		}
		return fmt.Sprintf("catalog %s error: %s", e.ErrorClass, e.Message)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a request that could not complete.
func IsTransport(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.ErrorClass == ErrorClassNetwork
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// classifyStatus maps a non-success status to its class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

func statusError(resp *http.Response) *FetchError {
	return &FetchError{
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    http.StatusText(resp.StatusCode),
	}
}

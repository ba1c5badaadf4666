package graph

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zvonler/wallspider/logging"
	"github.com/zvonler/wallspider/model"
)

var (
	ErrInvalidNodeType = model.ErrInvalidNodeType
	ErrInvalidOption   = model.ErrInvalidOption

	// ErrPageLimit aborts a crawl whose cursor chain outgrows the page cap.
	ErrPageLimit = errors.New("page limit exceeded")

	// ErrCursorLoop aborts a crawl whose next cursor points at a page that
	// was already requested.
	ErrCursorLoop = errors.New("pagination cursor revisited")

	// ErrBodyTooLarge reports a response that reached the body size limit
	// and was cut short.
	ErrBodyTooLarge = errors.New("response body too large")
)

// ValidationError reports a crawl request rejected before any I/O.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError reports a failed request. StatusCode is zero when no HTTP
// response was received.
type TransportError struct {
	Path       string
	StatusCode int
	APIMessage string
	Err        error
}

func (e *TransportError) Error() string {
	msg := "GET " + logging.RedactToken(e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.APIMessage != "" {
		msg += ": " + e.APIMessage
	}
	if e.Err != nil {
		msg += ": " + logging.RedactToken(e.Err.Error())
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if issued again.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// MalformedResponseError reports a response body that could not be turned
// into records.
type MalformedResponseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed response"
	if e.Path != "" {
		msg += " for " + logging.RedactToken(e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + logging.RedactToken(e.Err.Error())
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

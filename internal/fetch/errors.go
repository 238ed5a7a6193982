package fetch

import (
	"errors"
	"fmt"
)

// Errors raised before any network attempt. Neither is retried:
// a malformed URL can never succeed and a failing DNS lookup is a
// persistent condition that would only burn the retry budget.
var (
	ErrMalformedURL = errors.New("malformed url")
	ErrResolution   = errors.New("dns resolution failed")
)

// Kind classifies a retryable fetch failure.
type Kind string

// Retryable failure kinds.
const (
	KindTimeout    Kind = "timeout"
	KindProtocol   Kind = "protocol"
	KindHTTPStatus Kind = "http_status"
)

// Error is a classified fetch failure for one URL.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s %d: %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

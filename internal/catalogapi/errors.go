package catalogapi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetch covers connection failures, timeouts and non-2xx responses.
	ErrTransientFetch = errors.New("catalog fetch failed")

	// ErrUnknownItemShape is returned for an item that is neither a product nor a promotion tile.
	ErrUnknownItemShape = errors.New("catalog item matches no known shape")
)

const maxBodySnippet = 2048

// PayloadDecodeError means the response body did not match the expected schema.
// The raw body is kept for diagnostics.
type PayloadDecodeError struct {
	Body []byte
	Err  error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("decode catalog response: %v", e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

// Snippet returns the start of the raw body, suitable for a log line.
func (e *PayloadDecodeError) Snippet() string {
	return truncate(e.Body, maxBodySnippet)
}

// StatusError is a non-2xx response from the catalog API.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrTransientFetch, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrTransientFetch
}

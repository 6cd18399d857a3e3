package imagemanager

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the asset's content could not be located.
	ErrNotFound = errors.New("asset not found")

	// ErrFetchFailed matches every provider-reported failure.
	ErrFetchFailed = errors.New("image fetch failed")

	// ErrCancelled matches the result delivered for a cancelled request.
	ErrCancelled = errors.New("image request cancelled")

	// ErrInvalidParameters is returned, never delivered, for malformed requests.
	ErrInvalidParameters = errors.New("invalid image request parameters")

	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("image manager closed")
)

// FetchError wraps a provider failure with the request it belongs to.
// errors.Is matches ErrFetchFailed and anything the cause matches.
type FetchError struct {
	RequestID RequestID
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("request %s: %v", e.RequestID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// CancelledError is the outcome of a request cancelled before it finished.
type CancelledError struct {
	RequestID RequestID
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("request %s cancelled", e.RequestID)
}

// Is reports whether target is ErrCancelled.
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func invalidParameters(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
}

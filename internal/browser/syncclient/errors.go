package syncclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned without a request when the action needs
	// a signed-in shopper and the page says there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTransport covers network failures, 5xx answers, an open breaker and
	// bodies that are not the storefront's JSON.
	ErrTransport = errors.New("transport failure")
	// ErrInFlight is returned when the same action on the same target has not
	// finished yet.
	ErrInFlight = errors.New("action already in flight")
	// ErrInvalidTarget is returned for an empty or malformed slug or item id.
	ErrInvalidTarget = errors.New("invalid target")
)

// RejectedError is a well-formed {success:false} answer.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (%d): %s", e.Status, e.Message)
}

// IsRejected reports whether err is a business rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errors.New("Unauthorized")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDispatchInProgress   = errors.New("dispatch already in progress")
	ErrChannelNotConfigured = errors.New("delivery channel is not configured")
	ErrDuplicateSequenceDay = errors.New("follow-up already scheduled for this sequence day")
	ErrNotInFlight          = errors.New("message is not claimed for sending")
)

// ErrParentNotFound is returned when a lead, quote, project or client does not exist.
type ErrParentNotFound struct {
	Kind string
	ID   string
}

func (e *ErrParentNotFound) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// Helper constructor
func NewParentNotFound(kind, id string) error {
	return &ErrParentNotFound{Kind: kind, ID: id}
}

// IsNotFound reports whether err wraps an ErrParentNotFound.
func IsNotFound(err error) bool {
	var nf *ErrParentNotFound
	return errors.As(err, &nf)
}

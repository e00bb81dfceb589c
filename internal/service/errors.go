package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientTeams       = errors.New("at least two teams are needed to create matches")
	ErrStoreWriteFailed        = errors.New("store write failed")
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchAlreadyCompleted   = errors.New("match is already completed")
	ErrInvalidWinner           = errors.New("winner is not part of this match")
	ErrInvalidStatusTransition = errors.New("invalid match status transition")
	ErrEventNotFound           = errors.New("event not found")
	ErrValidationFailed        = errors.New("validation failed")
	ErrForbidden               = errors.New("operation not allowed for the current user")
)

// ClearError reports a bulk clear that only partly went through.
type ClearError struct {
	Deleted int
	Failed  int
	Err     error
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("cleared %d matches, %d could not be deleted: %v", e.Deleted, e.Failed, e.Err)
}

func (e *ClearError) Unwrap() []error {
	return []error{ErrStoreWriteFailed, e.Err}
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreWriteFailed, op, err)
}

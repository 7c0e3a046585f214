package chat

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrProtectedSession    = errors.New("the default chat cannot be deleted")
	ErrNameConflict        = errors.New("chat name already in use")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrStorage             = errors.New("storage error")
)

// storageErr wraps a persistence failure as ErrStorage. Domain errors raised
// inside a transaction pass through unchanged.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNameConflict) || errors.Is(err, ErrProtectedSession) || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func upstreamErr(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

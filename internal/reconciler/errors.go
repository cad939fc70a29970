package reconciler

import (
	"errors"
	"fmt"
)

// SkippableInputError describes an inventory entry that lacks a field the
// reconcilers need. It is logged and the entry is skipped.
type SkippableInputError struct {
	// Item identifies the entry (address, service display, URL).
	Item string
	// Reason is one of the Reason* constants.
	Reason string
	// Detail is a human-readable explanation.
	Detail string
}

func (e *SkippableInputError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("skipping %s: %s", e.Item, e.Reason)
	}
	return fmt.Sprintf("skipping %s: %s: %s", e.Item, e.Reason, e.Detail)
}

// IsSkippable returns true if err is or wraps a *SkippableInputError.
func IsSkippable(err error) bool {
	var target *SkippableInputError
	return errors.As(err, &target)
}

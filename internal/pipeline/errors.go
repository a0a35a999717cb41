package pipeline

import (
	"errors"
	"fmt"
)

// MalformedInputError reports a statement that cannot be interpreted at all.
// No rows are persisted when it is returned.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed statement: %s", e.Reason)
}

// IsMalformedInput reports whether err wraps a *MalformedInputError.
func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}

func malformed(format string, args ...interface{}) error {
	return &MalformedInputError{Reason: fmt.Sprintf(format, args...)}
}

package httpwire

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched by every error that ReadRequest returns for input
// that violates the wire syntax.
var ErrMalformed = errors.New("malformed request")

// ParseError describes why a request was rejected.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

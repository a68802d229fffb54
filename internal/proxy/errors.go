package proxy

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget reports a route target that is missing or does not parse
// as an absolute URL.
var ErrInvalidTarget = errors.New("invalid proxy target")

// CompileError wraps whatever made one specific route impossible to compile.
// Depending on policy the table build either aborts on it or logs it and
// skips the route.
type CompileError struct {
	Route string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("route %q: %v", e.Route, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

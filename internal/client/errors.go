package client

import (
	"errors"
	"fmt"
)

// ErrStartup matches every fatal startup failure
var ErrStartup = errors.New("startup failed")

// ErrNotStarted is returned by Run and Send before startup completed
var ErrNotStarted = errors.New("client not started")

// StartupError records which startup step failed
type StartupError struct {
	Step string
	Err  error
}

// Error implements the error interface
func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e *StartupError) Unwrap() error {
	return e.Err
}

// Is matches ErrStartup
func (e *StartupError) Is(target error) bool {
	return target == ErrStartup
}

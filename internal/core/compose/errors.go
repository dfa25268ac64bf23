// Package compose reads Docker Compose files found in analyzed repositories.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput  = errors.New("compose file is empty")
	ErrInvalidYAML = errors.New("invalid compose file")
	ErrNoServices  = errors.New("compose file defines no services")
)

// ParseError reports the stage ("yaml" or "load") a compose file failed in.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("compose %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

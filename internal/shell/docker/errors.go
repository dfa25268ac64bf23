package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrDaemonUnavailable = errors.New("docker daemon unavailable")
	ErrContainerNotFound = errors.New("container not found")
	ErrNameConflict      = errors.New("container name already in use")
	ErrImageNotFound     = errors.New("image not found")
	ErrImagePull         = errors.New("image pull failed")
)

// OpError reports a failed daemon call. Ref names the container or image
// the call was about, when there is one.
type OpError struct {
	Op  string
	Ref string
	Err error
}

func (e *OpError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("docker %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("docker %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, ref string, err error) error {
	return &OpError{Op: op, Ref: ref, Err: err}
}

// classify maps daemon errors onto the package sentinels, keeping the
// daemon message.
func classify(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%w: %w", notFound, err)
	case isConflict(err):
		return fmt.Errorf("%w: %w", ErrNameConflict, err)
	}
	return err
}

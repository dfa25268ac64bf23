// Package store persists credentials, deployment history, plans and
// Terraform logs in SQLite.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a deployment ID is reused.
	ErrDuplicateID = errors.New("id already in use")
	// ErrUnknownDeployment is returned when a log line names no stored deployment.
	ErrUnknownDeployment = errors.New("unknown deployment")
	ErrUnavailable       = errors.New("database unavailable")
	ErrMigration         = errors.New("schema migration failed")
	// ErrCorrupt is returned when a stored JSON column cannot be encoded or decoded.
	ErrCorrupt = errors.New("corrupt record")
	ErrTx      = errors.New("transaction failed")
)

// StoreError records which call failed and on what.
type StoreError struct {
	Op      string // e.g. "GetDeployment"
	Entity  string // "credential", "deployment", "deployment_log"
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	parts := []string{"store", e.Op}
	if e.Entity != "" {
		parts = append(parts, e.Entity)
	}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	return strings.Join(parts, " ") + ": " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}

// wrapf is NewStoreError with a formatted message.
func wrapf(op, entity, id string, err error, format string, args ...any) *StoreError {
	return NewStoreError(op, entity, id, fmt.Sprintf(format, args...), err)
}

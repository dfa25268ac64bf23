// Package synth renders a validated plan as Terraform configuration.
//
// This is part of the Functional Core: Synthesize is pure and deterministic.
// The same plan always yields byte-identical files, so re-synthesis of an
// unchanged plan reproduces prior output.
package synth

import (
	"errors"
	"fmt"
)

// ErrSynthesisInvariant is matched by every SynthesisInvariantError.
var ErrSynthesisInvariant = errors.New("synthesis invariant violated")

// SynthesisInvariantError means the synthesizer was handed a plan it cannot
// render, such as one using an undeclared variable. Against a validated plan
// it never occurs.
type SynthesisInvariantError struct {
	Where  string
	Reason string
}

func (e *SynthesisInvariantError) Error() string {
	if e.Where == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Where, e.Reason)
}

func (e *SynthesisInvariantError) Unwrap() error {
	return ErrSynthesisInvariant
}

func invariant(where, format string, args ...any) *SynthesisInvariantError {
	return &SynthesisInvariantError{Where: where, Reason: fmt.Sprintf(format, args...)}
}

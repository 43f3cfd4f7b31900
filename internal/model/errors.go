package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrNonPositive          = errors.New("must be greater than 0")
	ErrUnknownAlgorithm     = errors.New("unknown algorithm")
	ErrNotANumber           = errors.New("not a number")
	ErrRequired             = errors.New("must not be empty")
	ErrGeneratorUnavailable = errors.New("timing generator unavailable")
	ErrUnsupportedBackend   = errors.New("unsupported display backend")
	ErrNotApplicable        = errors.New("bundle cannot be applied")
	ErrApplyInProgress      = errors.New("apply already in progress")
)

// ValidationError reports a rejected input value.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid timing request: %v", e.Err)
	}
	return fmt.Sprintf("invalid %s %v: %v", strings.ToLower(e.Field), e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CalculationError reports that the selected algorithm could not produce a
// modeline.
type CalculationError struct {
	Algorithm Algorithm
	Reason    string
	Err       error
}

func (e *CalculationError) Error() string {
	msg := fmt.Sprintf("%s calculation failed: %s", e.Algorithm, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// EnumerationError reports a failed display query.
type EnumerationError struct {
	Backend DisplayBackend
	Err     error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("failed to list displays for %s: %v", e.Backend, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// RenderError reports that a backend has no configuration dialect.
type RenderError struct {
	Backend DisplayBackend
	Reason  string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("cannot render configuration for %s: %s", e.Backend, e.Reason)
}

func (e *RenderError) Unwrap() error {
	return ErrUnsupportedBackend
}

// InstallError reports a failed privileged install. Partial is set when the
// primary destination was written despite the failure.
type InstallError struct {
	Partial bool
	Message string
	Err     error
}

func (e *InstallError) Error() string {
	prefix := "install failed"
	if e.Partial {
		prefix = "install partially applied"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// EscalationError reports that no privilege-escalation front-end succeeded.
type EscalationError struct {
	Tried []string
	Err   error
}

func (e *EscalationError) Error() string {
	if len(e.Tried) == 0 {
		return "no privilege escalation program found"
	}
	return fmt.Sprintf("privilege escalation failed (tried %s): %v", strings.Join(e.Tried, ", "), e.Err)
}

func (e *EscalationError) Unwrap() error {
	return e.Err
}

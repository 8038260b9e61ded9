// Package errkind defines the error taxonomy shared by the lifecycle
// manager, the reconciliation engine, and the daemon. Callers classify
// failures with errors.Is against the exported sentinels instead of
// inspecting messages.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks startup configuration failures; fatal before
	// the loop starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks I/O failures that resolve by retrying next cycle.
	ErrTransient = errors.New("transient failure")
	// ErrValidation marks input data that matches no configured table.
	ErrValidation = errors.New("validation error")
	// ErrIntegrity marks an unsatisfiable PK/FK dependency; the offending
	// file is quarantined and its ingest aborted.
	ErrIntegrity = errors.New("integrity error")
	// ErrPersistence marks a cycle where every catalog replica write failed.
	ErrPersistence = errors.New("persistence error")
	// ErrExhausted marks a bounded retry budget running out; counts toward
	// the daemon's consecutive-error budget.
	ErrExhausted = errors.New("resource exhausted")
)

// Wrap builds an error that includes component context while tagging it
// with the provided sentinel for later classification.
func Wrap(kind error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if kind == nil {
		kind = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", kind, detail, err)
	}
	return fmt.Errorf("%w: %s", kind, detail)
}

// Retryable reports whether the error should simply be retried next cycle
// rather than escalated.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrPersistence)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}

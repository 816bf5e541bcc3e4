package diag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks caller mistakes: malformed requests, unknown item
	// ids, duplicate keys.
	ErrValidation = errors.New("validation error")
	// ErrSealed marks mutation attempts against a sealed plan.
	ErrSealed = errors.New("plan sealed")
	// ErrBlocked marks structural plan failures (cycles, missing pipeline
	// registrations) that abort a job before execution.
	ErrBlocked = errors.New("plan blocked")
	// ErrIO marks filesystem failures from emitters and manifest writing.
	ErrIO = errors.New("io failure")
	// ErrCancelled marks cooperative cancellation. It is a terminal status,
	// not a defect.
	ErrCancelled = errors.New("cancelled")
	// ErrUnavailable marks resources another process holds, such as a locked
	// output root.
	ErrUnavailable = errors.New("unavailable")
)

// Wrap builds an error that includes component context while tagging it with
// the provided marker so callers can classify it with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FromError converts an error into an error-severity diagnostic with the
// given code.
func FromError(code string, err error) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: err.Error()}
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
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

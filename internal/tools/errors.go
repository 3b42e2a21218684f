package tools

import (
	"fmt"
	"strings"
)

// ErrToolUnavailable is returned when a call names a tool that is not
// registered. It indicates a model hallucination or a catalog mismatch,
// not a transient execution failure.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}

// ValidationError is returned when call arguments do not satisfy the
// tool's parameter schema. The handler is never invoked in that case.
type ValidationError struct {
	ToolName string
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.ToolName, strings.Join(e.Problems, "; "))
}

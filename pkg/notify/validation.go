package notify

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ValidationError maps input field names to the problems found with them.
// Transport layers render it with per-field details; Fields returns a
// copy safe to hand out.
type ValidationError map[string][]string

// NewValidationError creates an empty validation error.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add records a problem for a field.
func (e ValidationError) Add(field, message string) {
	e[field] = append(e[field], message)
}

// IsEmpty reports whether any problem was recorded.
func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}

// Fields returns a detached copy of the per-field problems.
func (e ValidationError) Fields() map[string][]string {
	out := make(map[string][]string, len(e))
	for field, messages := range e {
		out[field] = slices.Clone(messages)
	}
	return out
}

// Error summarizes the first problem per field, in field order, so the
// message is stable across runs.
func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(e))
	for _, field := range slices.Sorted(maps.Keys(e)) {
		if messages := e[field]; len(messages) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", field, messages[0]))
		}
	}
	return fmt.Sprintf("validation error: %s", strings.Join(parts, ", "))
}

package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateProcessID validates a stored process table id for safety.
// Process ids become file names in the file store and path parameters in the
// HTTP API, so anything that could escape a directory is rejected.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - Maximum length of 128 characters
//   - Only letters, digits, '-' and '_'
func ValidateProcessID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "process id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "process id too long (max 128 characters)")
	}

	if !processIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid process id: %q", id)
	}

	return nil
}

var processIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateStepID validates a step identifier.
// Step ids are opaque but must be non-empty, printable and short enough to
// become part of a BPMN element id.
func ValidateStepID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidInput, "step id cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "step id too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "step id contains invalid control characters")
		}
	}

	return nil
}

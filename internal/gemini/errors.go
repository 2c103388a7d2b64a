package gemini

import (
	"fmt"
	"strings"
)

// StatusError is a non-2xx reply from the generateContent endpoint. The body
// is kept verbatim so callers can inspect the service's own wording.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, strings.TrimSpace(e.Body))
}

// BlockedError reports a request the service refused on safety or policy
// grounds. Reason is the service's stated reason and is meant to be shown to
// the user as-is.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("generation blocked: %s", e.Reason)
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}

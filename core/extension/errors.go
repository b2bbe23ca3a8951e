package extension

import (
	"fmt"
	"strings"
)

// DuplicateError reports a second registration under an occupied name.
type DuplicateError struct {
	Capability Capability
	Name       string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("extension %q already registered for capability %q", e.Name, e.Capability)
}

// NotFoundError reports a lookup of an unregistered extension name.
type NotFoundError struct {
	Capability Capability
	Name       string
	Registered []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no extension %q registered for capability %q", e.Name, e.Capability)
	if len(e.Registered) > 0 {
		msg += " (registered: " + strings.Join(e.Registered, ", ") + ")"
	}
	return msg
}

// ResolutionError reports that adaptive dispatch resolved a name with no
// registered implementation.
type ResolutionError struct {
	Capability Capability
	Name       string
	URL        string
	cause      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("adaptive resolution of capability %q for %s selected %q: %v",
		e.Capability, e.URL, e.Name, e.cause)
}

// Unwrap exposes the underlying lookup failure.
func (e *ResolutionError) Unwrap() error { return e.cause }

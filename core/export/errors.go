package export

import "fmt"

// ConfigError is a fatal configuration or validation failure. It aborts the
// whole export of the service and is surfaced synchronously.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "export config: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ArgumentMismatchError reports an argument override whose declared index
// and type disagree with the resolved method signature.
type ArgumentMismatchError struct {
	Method string
	Index  int
	Type   string
}

func (e *ArgumentMismatchError) Error() string {
	return fmt.Sprintf("argument config error: index %d and type %q do not match on method %q",
		e.Index, e.Type, e.Method)
}

// ArgumentIncompleteError reports an argument override declaring neither an
// index nor a type.
type ArgumentIncompleteError struct {
	Method string
}

func (e *ArgumentIncompleteError) Error() string {
	return fmt.Sprintf("argument config error: method %q argument must set index or type", e.Method)
}

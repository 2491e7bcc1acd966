package resolve

import "fmt"

// ConfigError reports configuration that cannot be resolved into a runnable
// project. It is always returned before any build step starts.
type ConfigError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Err)
	}
	return "config error: " + e.Message
}

// Unwrap provides compatibility for errors.Is and errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

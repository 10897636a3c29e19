package hub

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the normalized code for attachment-time contract
// violations. Always raised before any hardware I/O.
var ErrConfiguration = errors.New("CONFIGURATION")

// ConfigurationError carries the context of a build-time contract violation.
type ConfigurationError struct {
	Hub        string
	Peripheral string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Peripheral != "" {
		return fmt.Sprintf("%v: hub %q, peripheral %q: %s", ErrConfiguration, e.Hub, e.Peripheral, e.Reason)
	}
	return fmt.Sprintf("%v: hub %q: %s", ErrConfiguration, e.Hub, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

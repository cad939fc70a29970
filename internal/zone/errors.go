package zone

import (
	"errors"
	"fmt"
)

// ConfigError indicates the zone table cannot serve the configured root.
// It is fatal for a run.
type ConfigError struct {
	Root    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("zone configuration error: root %q: %s", e.Root, e.Message)
}

// DomainMismatchError indicates a name that is not under the root domain.
type DomainMismatchError struct {
	Name string
	Root string
}

func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("name %q is not part of root domain %q", e.Name, e.Root)
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsDomainMismatch returns true if err is or wraps a *DomainMismatchError.
func IsDomainMismatch(err error) bool {
	var target *DomainMismatchError
	return errors.As(err, &target)
}

package device

import "fmt"

// ConfigurationError reports kind-specific parameters the host cannot
// satisfy. It is detected at configure time, before any hardware is claimed.
type ConfigurationError struct {
	Device string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Device, e.Reason)
}

// UnavailableError reports hardware that cannot be claimed, for example a
// capture binary that is missing or a device already in use.
type UnavailableError struct {
	Device string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("device %s unavailable: %v", e.Device, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// StartError reports a driver-level failure while starting capture.
type StartError struct {
	Device string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("device %s failed to start: %v", e.Device, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports an unrecoverable teardown failure. Minor flush problems
// are logged, not raised.
type StopError struct {
	Device string
	Err    error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("device %s failed to stop: %v", e.Device, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

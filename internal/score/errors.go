package score

import "fmt"

// InsufficientDataError reports a reference distribution that is empty, below
// the configured minimum population, or a raw value too small to rank.
type InsufficientDataError struct {
	SignalID   string
	Population int
	Minimum    int
	Reason     string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data for signal %q: %s", e.SignalID, e.Reason)
	}
	return fmt.Sprintf("insufficient data for signal %q: population %d below minimum %d",
		e.SignalID, e.Population, e.Minimum)
}

// MissingSignalError reports a required signal absent from the input set.
type MissingSignalError struct {
	AxisID   string
	SignalID string
}

func (e *MissingSignalError) Error() string {
	return fmt.Sprintf("axis %q requires signal %q which is not present", e.AxisID, e.SignalID)
}

// ConfigurationError reports an aggregation configuration that references an
// undefined axis or signal, or is otherwise unusable. It is a setup error and
// fails fast.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

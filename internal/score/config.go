package score

import (
	"fmt"
	"math"
)

// CombinePolicy selects how an axis reduces its signal values.
type CombinePolicy string

const (
	CombineWeightedAverage CombinePolicy = "weighted-average"
	CombineSumClamp        CombinePolicy = "sum-then-clamp"
	CombineMax             CombinePolicy = "max"
)

// SignalSpec binds one signal into an axis.
type SignalSpec struct {
	ID       string  `yaml:"id"`
	Weight   float64 `yaml:"weight"`
	Optional bool    `yaml:"optional"`
	// Default substitutes for a missing optional signal. Without it a missing
	// optional signal is skipped entirely.
	Default *float64 `yaml:"default,omitempty"`
}

// ClampRange bounds an axis value after combination.
type ClampRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// AxisSpec declares how one axis combines its signals.
type AxisSpec struct {
	Signals []SignalSpec  `yaml:"signals"`
	Combine CombinePolicy `yaml:"combine"`
	Clamp   *ClampRange   `yaml:"clamp,omitempty"`
}

// LogWeight parameterizes one axis term of the composite formula
// a*log1p(b*value).
type LogWeight struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
}

// CompositeSpec declares the composite summary over axis values.
type CompositeSpec struct {
	// Weights must cover every configured axis; an axis without a weight is a
	// configuration error so that newly added axes cannot silently drop out
	// of the composite.
	Weights map[string]LogWeight `yaml:"weights"`
	// ReferenceID keys the composite's own reference distribution in the
	// rank pipeline.
	ReferenceID string `yaml:"reference_id"`
	// Optional lets the rank pipeline omit the composite when its reference
	// distribution is unavailable instead of failing.
	Optional bool `yaml:"optional"`
}

// Config is the full scoring configuration for one engine. It is passed
// explicitly into each pipeline invocation; there is no process-wide mutable
// scoring state.
type Config struct {
	Axes      map[string]AxisSpec `yaml:"axes"`
	Composite CompositeSpec       `yaml:"composite"`
	// MinPopulation is the smallest reference population the rank pipeline
	// accepts. Zero means any non-empty distribution.
	MinPopulation int `yaml:"min_population"`
	// UnratableFloor marks raw values below it as not rankable.
	UnratableFloor float64 `yaml:"unratable_floor"`
}

// Validate rejects configurations that reference undefined signals or axes,
// carry negative weights, or declare unknown combine policies.
func (c Config) Validate() error {
	if len(c.Axes) == 0 {
		return &ConfigurationError{Reason: "no axes configured"}
	}
	for axisID, axis := range c.Axes {
		if len(axis.Signals) == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("axis %q has no signals", axisID)}
		}
		switch axis.Combine {
		case CombineWeightedAverage, CombineSumClamp, CombineMax:
		default:
			return &ConfigurationError{
				Reason: fmt.Sprintf("axis %q has unknown combine policy %q", axisID, axis.Combine),
			}
		}
		seen := make(map[string]bool, len(axis.Signals))
		for _, sig := range axis.Signals {
			if sig.ID == "" {
				return &ConfigurationError{Reason: fmt.Sprintf("axis %q has a signal with no id", axisID)}
			}
			if seen[sig.ID] {
				return &ConfigurationError{
					Reason: fmt.Sprintf("axis %q lists signal %q twice", axisID, sig.ID),
				}
			}
			seen[sig.ID] = true
			if sig.Weight < 0 || math.IsNaN(sig.Weight) || math.IsInf(sig.Weight, 0) {
				return &ConfigurationError{
					Reason: fmt.Sprintf("axis %q signal %q has invalid weight %v", axisID, sig.ID, sig.Weight),
				}
			}
		}
		if axis.Clamp != nil && axis.Clamp.Min > axis.Clamp.Max {
			return &ConfigurationError{
				Reason: fmt.Sprintf("axis %q clamp range is inverted", axisID),
			}
		}
	}
	if len(c.Composite.Weights) > 0 {
		for axisID := range c.Composite.Weights {
			if _, ok := c.Axes[axisID]; !ok {
				return &ConfigurationError{
					Reason: fmt.Sprintf("composite weight references undefined axis %q", axisID),
				}
			}
		}
		for axisID := range c.Axes {
			if _, ok := c.Composite.Weights[axisID]; !ok {
				return &ConfigurationError{
					Reason: fmt.Sprintf("axis %q has no composite weight", axisID),
				}
			}
		}
	}
	if c.MinPopulation < 0 {
		return &ConfigurationError{Reason: "min_population must not be negative"}
	}
	return nil
}

// effectiveWeight treats an unset (zero) weight as equal weighting.
func effectiveWeight(w float64) float64 {
	if w == 0 {
		return 1
	}
	return w
}

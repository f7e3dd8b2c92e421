package score

import "sort"

// Aggregate combines per-signal values (raw or rank-converted) into a single
// axis value under the axis' declared combine policy. Missing required
// signals fail with MissingSignalError; missing optional signals either take
// their configured default or are skipped. The reduction is commutative, so
// the result does not depend on signal ordering.
func Aggregate(axisID string, axis AxisSpec, values map[string]float64) (AxisScore, error) {
	type term struct {
		id     string
		value  float64
		weight float64
	}

	terms := make([]term, 0, len(axis.Signals))
	for _, sig := range axis.Signals {
		v, ok := values[sig.ID]
		if !ok {
			if !sig.Optional {
				return AxisScore{}, &MissingSignalError{AxisID: axisID, SignalID: sig.ID}
			}
			if sig.Default == nil {
				continue
			}
			v = *sig.Default
		}
		terms = append(terms, term{id: sig.ID, value: v, weight: effectiveWeight(sig.Weight)})
	}

	if len(terms) == 0 {
		return AxisScore{}, &MissingSignalError{AxisID: axisID, SignalID: axis.Signals[0].ID}
	}

	var value float64
	switch axis.Combine {
	case CombineWeightedAverage:
		var sum, weightSum float64
		for _, t := range terms {
			sum += t.weight * t.value
			weightSum += t.weight
		}
		if weightSum == 0 {
			return AxisScore{}, &ConfigurationError{
				Reason: "axis " + axisID + " has zero total weight",
			}
		}
		value = sum / weightSum
	case CombineSumClamp:
		for _, t := range terms {
			value += t.weight * t.value
		}
	case CombineMax:
		value = terms[0].weight * terms[0].value
		for _, t := range terms[1:] {
			if wv := t.weight * t.value; wv > value {
				value = wv
			}
		}
	default:
		return AxisScore{}, &ConfigurationError{
			Reason: "axis " + axisID + " has unknown combine policy " + string(axis.Combine),
		}
	}

	if axis.Clamp != nil {
		value = clamp(value, axis.Clamp.Min, axis.Clamp.Max)
	}

	contributing := make([]string, len(terms))
	for i, t := range terms {
		contributing[i] = t.id
	}
	sort.Strings(contributing)

	return AxisScore{ID: axisID, Value: value, Signals: contributing}, nil
}

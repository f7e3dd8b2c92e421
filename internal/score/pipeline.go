package score

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ReferenceSource supplies reference distributions for signals that do not
// carry one inline. Implementations must be safe for concurrent use.
type ReferenceSource interface {
	Reference(ctx context.Context, signalID string) ([]float64, error)
}

// RankOptions tune a rank-pipeline invocation.
type RankOptions struct {
	// ReferencePerson marks the subject as a member of the reference
	// population, so their own observation is removed from the same-rank
	// count before normalization.
	ReferencePerson bool
}

// Engine runs the scoring pipelines for one validated configuration. It holds
// no mutable state; concurrent computations with different engines cannot
// interfere.
type Engine struct {
	cfg   Config
	known map[string]bool
}

// NewEngine validates the configuration and builds an engine. Configuration
// problems fail here, not deep inside aggregation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, axis := range cfg.Axes {
		for _, sig := range axis.Signals {
			known[sig.ID] = true
		}
	}
	if cfg.Composite.ReferenceID != "" {
		known[cfg.Composite.ReferenceID] = true
	}
	return &Engine{cfg: cfg, known: known}, nil
}

// checkKnown rejects input signals no axis is configured to consume. Unknown
// keys fail here, at the boundary, instead of being silently dropped.
func (e *Engine) checkKnown(signals SignalSet) error {
	for id := range signals {
		if !e.known[id] {
			return &ConfigurationError{Reason: fmt.Sprintf("input carries unknown signal %q", id)}
		}
	}
	return nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ScoreRaw runs the raw pipeline: signals feed axis aggregation directly,
// with no population comparison. Used when no reference population is
// available or an absolute measurement is wanted.
func (e *Engine) ScoreRaw(signals SignalSet) (*ScoreResult, error) {
	if err := e.checkKnown(signals); err != nil {
		return nil, err
	}

	axes := make(map[string]AxisScore, len(e.cfg.Axes))
	for _, axisID := range e.axisOrder() {
		axis := e.cfg.Axes[axisID]
		values := make(map[string]float64, len(axis.Signals))
		for _, spec := range axis.Signals {
			if sig, ok := signals.Get(spec.ID); ok {
				if err := validRawValue(spec.ID, sig.RawValue); err != nil {
					return nil, err
				}
				values[spec.ID] = sig.RawValue
			}
		}
		axisScore, err := Aggregate(axisID, axis, values)
		if err != nil {
			return nil, err
		}
		axes[axisID] = axisScore
	}

	result := &ScoreResult{Version: VersionRaw, Axes: axes}
	if len(e.cfg.Composite.Weights) > 0 {
		axisValues := make(map[string]float64, len(axes))
		for id, a := range axes {
			axisValues[id] = a.Value
		}
		result.Composite = &CompositeScore{Value: e.compositeRaw(axisValues)}
	}
	return result, nil
}

// ScoreRank runs the rank pipeline: each signal is converted to its position
// within a reference population before aggregation, so differently scaled
// signals become comparable and an outlier raw value compresses to at most
// 100. Inline references on a signal take precedence over the source.
func (e *Engine) ScoreRank(ctx context.Context, signals SignalSet, refs ReferenceSource, opts RankOptions) (*ScoreResult, error) {
	if err := e.checkKnown(signals); err != nil {
		return nil, err
	}

	axes := make(map[string]AxisScore, len(e.cfg.Axes))
	axisRaw := make(map[string]float64, len(e.cfg.Axes))

	for _, axisID := range e.axisOrder() {
		axis := e.cfg.Axes[axisID]

		percentiles := make(map[string]float64, len(axis.Signals))
		normalized := make(map[string]float64, len(axis.Signals))
		rawValues := make(map[string]float64, len(axis.Signals))

		for _, spec := range axis.Signals {
			raw, ok := e.resolveRawValue(signals, spec)
			if !ok {
				if spec.Optional {
					continue
				}
				return nil, &MissingSignalError{AxisID: axisID, SignalID: spec.ID}
			}
			if err := validRawValue(spec.ID, raw); err != nil {
				return nil, err
			}
			rawValues[spec.ID] = raw

			if raw < e.cfg.UnratableFloor {
				if spec.Optional {
					continue
				}
				return nil, &InsufficientDataError{
					SignalID: spec.ID,
					Reason:   "raw value below unratable floor",
				}
			}

			info, err := e.rankSignal(ctx, signals, refs, spec.ID, raw, opts)
			if err != nil {
				if spec.Optional {
					continue
				}
				return nil, err
			}
			percentiles[spec.ID] = info.Percentile()
			normalized[spec.ID] = info.Normalized()
		}

		// Defaults were already substituted in raw-value units; strip them so
		// the percentile-domain aggregation cannot reapply them.
		rankAxis := stripDefaults(axis)

		axisScore, err := Aggregate(axisID, rankAxis, percentiles)
		if err != nil {
			return nil, err
		}
		axisScore.Percentile = axisScore.Value

		if len(normalized) > 0 {
			normScore, err := Aggregate(axisID, rankAxis, normalized)
			if err != nil {
				return nil, err
			}
			axisScore.Normalized = clamp(normScore.Value, 1.0, 5.0)
		}
		axes[axisID] = axisScore

		if rawScore, err := Aggregate(axisID, rankAxis, rawValues); err == nil {
			axisRaw[axisID] = rawScore.Value
		}
	}

	result := &ScoreResult{Version: VersionRank, Axes: axes}

	if len(e.cfg.Composite.Weights) > 0 {
		composite, err := e.rankComposite(ctx, signals, refs, axisRaw, opts)
		if err != nil {
			return nil, err
		}
		result.Composite = composite
	}
	return result, nil
}

// resolveRawValue looks the signal up, falling back to a configured default
// for optional signals. Defaults are declared in raw-value units and ranked
// like any observed value.
func (e *Engine) resolveRawValue(signals SignalSet, spec SignalSpec) (float64, bool) {
	if sig, ok := signals.Get(spec.ID); ok {
		return sig.RawValue, true
	}
	if spec.Optional && spec.Default != nil {
		return *spec.Default, true
	}
	return 0, false
}

// rankSignal resolves the reference distribution and positions raw within it.
func (e *Engine) rankSignal(ctx context.Context, signals SignalSet, refs ReferenceSource, signalID string, raw float64, opts RankOptions) (RankInfo, error) {
	reference, err := e.resolveReference(ctx, signals, refs, signalID)
	if err != nil {
		return RankInfo{}, err
	}
	if len(reference) < e.cfg.MinPopulation {
		return RankInfo{}, &InsufficientDataError{
			SignalID:   signalID,
			Population: len(reference),
			Minimum:    e.cfg.MinPopulation,
		}
	}

	info, err := RankWithin(signalID, raw, reference)
	if err != nil {
		return RankInfo{}, err
	}
	if opts.ReferencePerson && info.SameRank > 0 {
		info.SameRank--
	}
	return info, nil
}

// resolveReference prefers a distribution carried inline on the signal, then
// asks the source. No source and no inline distribution is insufficient data.
func (e *Engine) resolveReference(ctx context.Context, signals SignalSet, refs ReferenceSource, signalID string) ([]float64, error) {
	if sig, ok := signals.Get(signalID); ok && len(sig.Reference) > 0 {
		return sig.Reference, nil
	}
	if refs == nil {
		return nil, &InsufficientDataError{
			SignalID: signalID,
			Reason:   "no reference distribution available",
		}
	}
	reference, err := refs.Reference(ctx, signalID)
	if err != nil {
		return nil, err
	}
	return reference, nil
}

// rankComposite ranks the raw composite value against the composite's own
// reference distribution.
func (e *Engine) rankComposite(ctx context.Context, signals SignalSet, refs ReferenceSource, axisRaw map[string]float64, opts RankOptions) (*CompositeScore, error) {
	rawComposite := e.compositeRaw(axisRaw)

	refID := e.cfg.Composite.ReferenceID
	if refID == "" {
		if e.cfg.Composite.Optional {
			return nil, nil
		}
		return nil, &ConfigurationError{Reason: "composite has no reference_id"}
	}

	info, err := e.rankSignal(ctx, signals, refs, refID, rawComposite, opts)
	if err != nil {
		if e.cfg.Composite.Optional {
			return nil, nil
		}
		return nil, err
	}
	return &CompositeScore{
		Value:      info.Normalized(),
		Percentile: info.Percentile(),
	}, nil
}

// compositeRaw is the weighted log-compression sum(a*log1p(b*axis)) over axis
// raw values. Axes missing from the map contribute nothing.
func (e *Engine) compositeRaw(axisValues map[string]float64) float64 {
	ids := make([]string, 0, len(e.cfg.Composite.Weights))
	for id := range e.cfg.Composite.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0.0
	for _, id := range ids {
		value, ok := axisValues[id]
		if !ok {
			continue
		}
		w := e.cfg.Composite.Weights[id]
		total += w.A * math.Log1p(w.B*value)
	}
	return total
}

func (e *Engine) axisOrder() []string {
	ids := make([]string, 0, len(e.cfg.Axes))
	for id := range e.cfg.Axes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validRawValue rejects measurements that are not usable as signal values.
func validRawValue(signalID string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InsufficientDataError{SignalID: signalID, Reason: "raw value is not finite"}
	}
	if v < 0 {
		return &InsufficientDataError{SignalID: signalID, Reason: "raw value is negative"}
	}
	return nil
}

func stripDefaults(axis AxisSpec) AxisSpec {
	stripped := axis
	stripped.Signals = make([]SignalSpec, len(axis.Signals))
	for i, sig := range axis.Signals {
		sig.Default = nil
		sig.Optional = true
		stripped.Signals[i] = sig
	}
	return stripped
}

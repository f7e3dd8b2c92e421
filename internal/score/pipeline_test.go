package score

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource is an in-memory ReferenceSource for tests.
type mapSource map[string][]float64

func (m mapSource) Reference(_ context.Context, signalID string) ([]float64, error) {
	return m[signalID], nil
}

func testConfig() Config {
	return Config{
		Axes: map[string]AxisSpec{
			"code": {
				Signals: []SignalSpec{{ID: "code", Weight: 1}},
				Combine: CombineWeightedAverage,
			},
			"community": {
				Signals: []SignalSpec{
					{ID: "events", Weight: 1},
					{ID: "tags", Weight: 1},
				},
				Combine: CombineWeightedAverage,
			},
		},
		Composite: CompositeSpec{
			Weights: map[string]LogWeight{
				"code":      {A: 1, B: 1},
				"community": {A: 1, B: 1},
			},
			ReferenceID: "overall",
			Optional:    true,
		},
		MinPopulation: 1,
	}
}

func testSignals() SignalSet {
	set := SignalSet{}
	set.Add(Signal{ID: "code", RawValue: 4})
	set.Add(Signal{ID: "events", RawValue: 10})
	set.Add(Signal{ID: "tags", RawValue: 20})
	return set
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "no axes",
			mutate: func(c *Config) { c.Axes = nil },
		},
		{
			name: "unknown combine policy",
			mutate: func(c *Config) {
				axis := c.Axes["code"]
				axis.Combine = "median"
				c.Axes["code"] = axis
			},
		},
		{
			name: "composite references undefined axis",
			mutate: func(c *Config) {
				c.Composite.Weights["ghost"] = LogWeight{A: 1, B: 1}
			},
		},
		{
			name: "axis without composite weight",
			mutate: func(c *Config) {
				delete(c.Composite.Weights, "community")
			},
		},
		{
			name: "negative weight",
			mutate: func(c *Config) {
				axis := c.Axes["code"]
				axis.Signals = []SignalSpec{{ID: "code", Weight: -1}}
				c.Axes["code"] = axis
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewEngine(cfg)
			require.Error(t, err)

			var confErr *ConfigurationError
			assert.True(t, errors.As(err, &confErr))
		})
	}
}

func TestScoreRaw(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	result, err := engine.ScoreRaw(testSignals())
	require.NoError(t, err)

	assert.Equal(t, VersionRaw, result.Version)
	require.Len(t, result.Axes, 2)
	assert.InDelta(t, 4.0, result.Axes["code"].Value, 1e-12)
	assert.InDelta(t, 15.0, result.Axes["community"].Value, 1e-12)

	require.NotNil(t, result.Composite)
	want := math.Log1p(4) + math.Log1p(15)
	assert.InDelta(t, want, result.Composite.Value, 1e-12)
}

func TestScoreRawDeterminism(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	first, err := engine.ScoreRaw(testSignals())
	require.NoError(t, err)
	second, err := engine.ScoreRaw(testSignals())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScoreRawMissingSignal(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	set := SignalSet{}
	set.Add(Signal{ID: "events", RawValue: 10})
	set.Add(Signal{ID: "tags", RawValue: 20})

	result, err := engine.ScoreRaw(set)
	require.Error(t, err)
	assert.Nil(t, result, "a failing axis must not leave a partial result")

	var missing *MissingSignalError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "code", missing.SignalID)
}

func TestScoreRejectsUnknownSignal(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	set := testSignals()
	set.Add(Signal{ID: "follower_count", RawValue: 9000})

	result, err := engine.ScoreRaw(set)
	require.Error(t, err)
	assert.Nil(t, result)

	var confErr *ConfigurationError
	require.True(t, errors.As(err, &confErr))
	assert.Contains(t, confErr.Reason, "follower_count")
}

func TestScoreRejectsUnusableRawValues(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	for name, raw := range map[string]float64{
		"NaN":      math.NaN(),
		"infinite": math.Inf(1),
		"negative": -1,
	} {
		t.Run(name, func(t *testing.T) {
			set := testSignals()
			set.Add(Signal{ID: "code", RawValue: raw})

			result, err := engine.ScoreRaw(set)
			require.Error(t, err)
			assert.Nil(t, result)

			var insufficient *InsufficientDataError
			require.True(t, errors.As(err, &insufficient))
			assert.Equal(t, "code", insufficient.SignalID)
		})
	}
}

func TestScoreRankInlineReference(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	set := SignalSet{}
	set.Add(Signal{ID: "code", RawValue: 4, Reference: []float64{1, 2, 3, 4, 10}})
	set.Add(Signal{ID: "events", RawValue: 10, Reference: []float64{5, 10, 15, 20}})
	set.Add(Signal{ID: "tags", RawValue: 20, Reference: []float64{5, 10, 15, 20}})

	result, err := engine.ScoreRank(context.Background(), set, nil, RankOptions{})
	require.NoError(t, err)

	assert.Equal(t, VersionRank, result.Version)
	assert.InDelta(t, 80.0, result.Axes["code"].Percentile, 1e-12)
	assert.InDelta(t, 80.0, result.Axes["code"].Value, 1e-12)
	// events: 2 of 4 at or below 10 -> 50; tags: 4 of 4 -> 100; equal weights.
	assert.InDelta(t, 75.0, result.Axes["community"].Value, 1e-12)

	for _, axis := range result.Axes {
		assert.GreaterOrEqual(t, axis.Normalized, 1.0)
		assert.LessOrEqual(t, axis.Normalized, 5.0)
	}

	// Composite reference unavailable and composite is optional.
	assert.Nil(t, result.Composite)
}

func TestScoreRankSourceReference(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	refs := mapSource{
		"code":    {1, 2, 3, 4, 10},
		"events":  {5, 10, 15, 20},
		"tags":    {5, 10, 15, 20},
		"overall": {0.5, 1, 2, 3, 4},
	}

	result, err := engine.ScoreRank(context.Background(), testSignals(), refs, RankOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 80.0, result.Axes["code"].Percentile, 1e-12)

	require.NotNil(t, result.Composite)
	assert.GreaterOrEqual(t, result.Composite.Value, 1.0)
	assert.LessOrEqual(t, result.Composite.Value, 5.0)
	assert.GreaterOrEqual(t, result.Composite.Percentile, 0.0)
	assert.LessOrEqual(t, result.Composite.Percentile, 100.0)
}

func TestScoreRankDeterminism(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	refs := mapSource{
		"code":   {1, 2, 3, 4, 10},
		"events": {5, 10, 15, 20},
		"tags":   {5, 10, 15, 20},
	}

	first, err := engine.ScoreRank(context.Background(), testSignals(), refs, RankOptions{})
	require.NoError(t, err)
	second, err := engine.ScoreRank(context.Background(), testSignals(), refs, RankOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScoreRankReferencePerson(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	set := SignalSet{}
	// The subject's own observation (4) is part of the reference population.
	set.Add(Signal{ID: "code", RawValue: 4, Reference: []float64{1, 2, 3, 4, 10}})
	set.Add(Signal{ID: "events", RawValue: 10, Reference: []float64{5, 10, 15, 20}})
	set.Add(Signal{ID: "tags", RawValue: 20, Reference: []float64{5, 10, 15, 20}})

	result, err := engine.ScoreRank(context.Background(), set, nil, RankOptions{ReferencePerson: true})
	require.NoError(t, err)

	// Removing the self observation drops the same-rank count to zero,
	// leaving 3 of the 4 remaining observations at or below.
	assert.InDelta(t, 75.0, result.Axes["code"].Percentile, 1e-12)
}

func TestScoreRankInsufficientData(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	t.Run("no reference anywhere", func(t *testing.T) {
		result, err := engine.ScoreRank(context.Background(), testSignals(), nil, RankOptions{})
		require.Error(t, err)
		assert.Nil(t, result)

		var insufficient *InsufficientDataError
		assert.True(t, errors.As(err, &insufficient))
	})

	t.Run("population below minimum", func(t *testing.T) {
		cfg := testConfig()
		cfg.MinPopulation = 10
		strict, err := NewEngine(cfg)
		require.NoError(t, err)

		refs := mapSource{
			"code":   {1, 2, 3, 4, 10},
			"events": {5, 10, 15, 20},
			"tags":   {5, 10, 15, 20},
		}
		result, err := strict.ScoreRank(context.Background(), testSignals(), refs, RankOptions{})
		require.Error(t, err)
		assert.Nil(t, result)

		var insufficient *InsufficientDataError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 10, insufficient.Minimum)
	})
}

func TestScoreRankUnratableFloor(t *testing.T) {
	cfg := testConfig()
	cfg.UnratableFloor = 0.12
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	set := testSignals()
	set.Add(Signal{ID: "code", RawValue: 0.05, Reference: []float64{1, 2, 3}})

	refs := mapSource{
		"events": {5, 10, 15, 20},
		"tags":   {5, 10, 15, 20},
	}
	result, err := engine.ScoreRank(context.Background(), set, refs, RankOptions{})
	require.Error(t, err)
	assert.Nil(t, result)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "code", insufficient.SignalID)
}

func TestScoreRankRequiredComposite(t *testing.T) {
	cfg := testConfig()
	cfg.Composite.Optional = false
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	refs := mapSource{
		"code":   {1, 2, 3, 4, 10},
		"events": {5, 10, 15, 20},
		"tags":   {5, 10, 15, 20},
		// no "overall" distribution
	}
	result, err := engine.ScoreRank(context.Background(), testSignals(), refs, RankOptions{})
	require.Error(t, err)
	assert.Nil(t, result)

	var insufficient *InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}

func TestScoreRankOutlierCompression(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	set := SignalSet{}
	// An absurd raw value still maps to at most the 100th percentile.
	set.Add(Signal{ID: "code", RawValue: 1e12, Reference: []float64{1, 2, 3, 4, 10}})
	set.Add(Signal{ID: "events", RawValue: 10, Reference: []float64{5, 10, 15, 20}})
	set.Add(Signal{ID: "tags", RawValue: 20, Reference: []float64{5, 10, 15, 20}})

	result, err := engine.ScoreRank(context.Background(), set, nil, RankOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Axes["code"].Percentile, 1e-12)
	assert.LessOrEqual(t, result.Axes["code"].Normalized, 5.0)
}

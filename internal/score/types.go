package score

// Version tags identify which pipeline and formula revision produced a result.
const (
	VersionRaw  = "raw-v2"
	VersionRank = "rank-v2"
)

// Signal is one raw measurement on a skill axis.
type Signal struct {
	ID        string    `json:"id"`
	RawValue  float64   `json:"raw_value"`
	Reference []float64 `json:"reference,omitempty"` // optional reference distribution for rank conversion
}

// SignalSet maps signal ids to signals. Absence of a key is distinct from a
// zero-valued signal.
type SignalSet map[string]Signal

// Add inserts or replaces a signal, keyed by its id.
func (s SignalSet) Add(sig Signal) {
	s[sig.ID] = sig
}

// Get looks up a signal by id.
func (s SignalSet) Get(id string) (Signal, bool) {
	sig, ok := s[id]
	return sig, ok
}

// RankInfo is a signal's position within a reference population.
type RankInfo struct {
	SignalID string `json:"signal_id"`
	Lower    int    `json:"lower"`     // reference observations strictly below the raw value
	Higher   int    `json:"higher"`    // reference observations strictly above the raw value
	SameRank int    `json:"same_rank"` // reference observations equal to the raw value
}

// Population returns the number of reference observations.
func (r RankInfo) Population() int {
	return r.Lower + r.Higher + r.SameRank
}

// Percentile returns the inclusive percentile rank in [0, 100]: the share of
// reference observations at or below the raw value. The maximum of the
// distribution maps to 100 and a value below all observations maps to 0.
func (r RankInfo) Percentile() float64 {
	n := r.Population()
	if n == 0 {
		return 0
	}
	return 100 * float64(r.Lower+r.SameRank) / float64(n)
}

// AxisScore is one named sub-score of a result.
type AxisScore struct {
	ID         string   `json:"id"`
	Value      float64  `json:"value"`
	Percentile float64  `json:"percentile,omitempty"` // rank pipeline only
	Normalized float64  `json:"normalized,omitempty"` // rank pipeline only, 1.0-5.0
	Signals    []string `json:"signals"`              // contributing signal ids, sorted
}

// CompositeScore is the single scalar summary of a result.
type CompositeScore struct {
	Value      float64 `json:"value"`
	Percentile float64 `json:"percentile,omitempty"` // rank pipeline only
}

// ScoreResult is the outcome of one pipeline invocation. It is constructed
// once per computation and never mutated afterwards.
type ScoreResult struct {
	Version   string               `json:"version"`
	Axes      map[string]AxisScore `json:"axes"`
	Composite *CompositeScore      `json:"composite,omitempty"`
}

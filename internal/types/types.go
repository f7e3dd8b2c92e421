package types

import "github.com/skillmeter-io/skillmeter/internal/score"

// SignalInput is one signal record as supplied by API and CLI callers. A
// reference distribution may be carried inline; otherwise the rank pipeline
// resolves it from the reference store.
type SignalInput struct {
	ID        string    `json:"id" binding:"required"`
	Value     float64   `json:"value"`
	Reference []float64 `json:"reference,omitempty"`
}

// ScoreRequest is the request structure for the score endpoints
type ScoreRequest struct {
	Signals []SignalInput `json:"signals" binding:"required"`
	// ReferencePerson marks the subject as a member of the reference
	// population; rank pipeline only.
	ReferencePerson bool `json:"reference_person,omitempty"`
}

// SignalSet converts the request payload into the engine's input form.
func (r ScoreRequest) SignalSet() score.SignalSet {
	set := score.SignalSet{}
	for _, in := range r.Signals {
		set.Add(score.Signal{
			ID:        in.ID,
			RawValue:  in.Value,
			Reference: in.Reference,
		})
	}
	return set
}

// HealthResponse reports liveness and component status.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

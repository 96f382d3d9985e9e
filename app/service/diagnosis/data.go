package diagnosis

import "sync"

// Result is one parsed diagnosis. Scores are passed through as the model
// wrote them, without clamping to their nominal ranges.
type Result struct {
	// Direction is -1.0 for conservative up to +1.0 for liberal.
	Direction float64 `json:"direction_score"`
	// Intensity is 0.0 for moderate up to 1.0 for extreme.
	Intensity float64 `json:"intensity_score"`
	Comment   string  `json:"comment"`
}

// Session is the per-user state a diagnosis is charged against. The lock is
// held for the whole request so the limit check and the increment cannot race.
type Session interface {
	sync.Locker

	CanDiagnose() bool
	RecordDiagnosis()
	Count() int
	Limit() int
	AddResult(Result)
}

package syncer

import "github.com/lexfrei/ambassador-annotation-sync/internal/metrics"

// Outcome is what happened to one service during a pass.
type Outcome string

// Service outcomes.
const (
	OutcomePatched Outcome = metrics.OutcomePatched
	OutcomeFailed  Outcome = metrics.OutcomeFailed
	OutcomeSkipped Outcome = metrics.OutcomeSkipped
)

// ServiceResult records the outcome for one service.
type ServiceResult struct {
	Name    string
	Outcome Outcome

	// Value is the annotation value that was submitted, if any.
	Value string

	Err error
}

// Result summarises a sync pass.
type Result struct {
	Namespace string
	DryRun    bool
	Services  []ServiceResult
}

// Count returns how many services ended with outcome.
func (r *Result) Count(outcome Outcome) int {
	count := 0

	for _, svc := range r.Services {
		if svc.Outcome == outcome {
			count++
		}
	}

	return count
}

// Service returns the result for the named service.
func (r *Result) Service(name string) (ServiceResult, bool) {
	for _, svc := range r.Services {
		if svc.Name == name {
			return svc, true
		}
	}

	return ServiceResult{}, false
}

func (r *Result) status() string {
	if r.Count(OutcomeFailed) > 0 {
		return "partial"
	}

	return "success"
}

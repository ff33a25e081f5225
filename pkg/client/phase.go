package client

// Phase is the state of the most recent fetch on a client.
type Phase int32

const (
	// PhaseIdle means no fetch has run yet.
	PhaseIdle Phase = iota

	// PhasePartitioning means the region is being validated and split into coordinates.
	PhasePartitioning

	// PhaseDispatching means workers are sending requests over the pooled connections.
	PhaseDispatching

	// PhaseCollecting means every worker finished and the result set is being checked.
	PhaseCollecting

	// PhaseDone means the last fetch returned a complete result set.
	PhaseDone

	// PhaseFailed means the last fetch returned a *FetchError.
	PhaseFailed
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePartitioning:
		return "partitioning"
	case PhaseDispatching:
		return "dispatching"
	case PhaseCollecting:
		return "collecting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

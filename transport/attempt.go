package transport

import "fmt"

// Phase is the position of one request in the refresh-and-retry lifecycle.
type Phase int

const (
	PhaseNormal Phase = iota
	PhaseRefreshPending
	PhaseRetrying
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseRefreshPending:
		return "refresh_pending"
	case PhaseRetrying:
		return "retrying"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RefreshPending is only reachable from Normal, so a request refreshes at most once.
var transitions = map[Phase][]Phase{
	PhaseNormal:         {PhaseRefreshPending, PhaseDone},
	PhaseRefreshPending: {PhaseRetrying, PhaseFailed},
	PhaseRetrying:       {PhaseDone},
}

type attempt struct {
	phase Phase
}

func (a *attempt) advance(to Phase) error {
	for _, next := range transitions[a.phase] {
		if next == to {
			a.phase = to
			return nil
		}
	}
	return fmt.Errorf("[transport] illegal request transition %s -> %s", a.phase, to)
}

// canRefresh reports whether a 401 in the current phase may trigger a refresh
func (a *attempt) canRefresh() bool {
	return a.phase == PhaseNormal
}

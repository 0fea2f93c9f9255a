package compile

import "fmt"

// State is a step of a compile task.
type State int

const (
	StateStart State = iota
	StateLayoutFetched
	StateIndexBuilt
	StateCompositing
	StateFinalizing
	StateDone
	StateSkipped
	StateFailed
)

var stateNames = [...]string{
	StateStart:         "start",
	StateLayoutFetched: "layout_fetched",
	StateIndexBuilt:    "index_built",
	StateCompositing:   "compositing",
	StateFinalizing:    "finalizing",
	StateDone:          "done",
	StateSkipped:       "skipped",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return stateNames[s]
}

func allowedTransition(from, to State) bool {
	switch from {
	case StateStart:
		return to == StateLayoutFetched || to == StateSkipped || to == StateFailed
	case StateLayoutFetched:
		return to == StateIndexBuilt || to == StateFailed
	case StateIndexBuilt:
		return to == StateCompositing || to == StateSkipped || to == StateFailed
	case StateCompositing:
		return to == StateFinalizing || to == StateFailed
	case StateFinalizing:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

package core

import "fmt"

// ArticleState tracks how far an article has progressed through ingestion.
type ArticleState string

const (
	StateFetched   ArticleState = "fetched"
	StateScored    ArticleState = "scored"
	StateClustered ArticleState = "clustered"
	StateProcessed ArticleState = "processed"
)

var stateTransitions = map[ArticleState][]ArticleState{
	StateFetched:   {StateScored},
	StateScored:    {StateClustered, StateProcessed},
	StateClustered: {StateProcessed},
}

// IsTerminal reports whether no further transition is possible.
func (s ArticleState) IsTerminal() bool {
	return s == StateProcessed
}

// Valid reports whether s is one of the known states.
func (s ArticleState) Valid() bool {
	switch s {
	case StateFetched, StateScored, StateClustered, StateProcessed:
		return true
	}
	return false
}

// CanTransition reports whether moving from one state to another is allowed.
// scored -> processed covers articles with too little text to cluster.
func CanTransition(from, to ArticleState) bool {
	for _, next := range stateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing a disallowed transition.
func ValidateTransition(from, to ArticleState) error {
	if !from.Valid() {
		return fmt.Errorf("unknown article state %q", from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid article state transition %s -> %s", from, to)
	}
	return nil
}

// PendingStates lists the states a resumed run must drive forward.
func PendingStates() []ArticleState {
	return []ArticleState{StateFetched, StateScored, StateClustered}
}

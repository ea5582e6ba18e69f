package domain

type CheckoutState string

const (
	StateBuilding   CheckoutState = "building"
	StateValidating CheckoutState = "validating"
	StateCommitting CheckoutState = "committing"
	StateCommitted  CheckoutState = "committed"
	StateRejected   CheckoutState = "rejected"
	StateFailed     CheckoutState = "failed"
)

func (s CheckoutState) Terminal() bool {
	return s == StateCommitted || s == StateRejected || s == StateFailed
}

var transitions = map[CheckoutState][]CheckoutState{
	StateBuilding:   {StateValidating},
	StateValidating: {StateCommitting, StateRejected, StateFailed},
	StateCommitting: {StateCommitted, StateFailed},
}

func (s CheckoutState) CanTransition(to CheckoutState) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

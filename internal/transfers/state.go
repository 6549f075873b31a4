package transfers

import "github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"

// Action is an event applied to a request.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	// ActionRevert undoes an approval whose ledger transfer failed.
	ActionRevert Action = "revert"
)

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
	},
	StatusApproved: {
		ActionComplete: StatusCompleted,
		ActionRevert:   StatusPending,
	},
}

// Next returns the state reached by applying action to current.
func Next(current Status, action Action) (Status, error) {
	if next, ok := transitions[current][action]; ok {
		return next, nil
	}
	return "", &shared.InvalidTransitionError{Current: string(current), Attempted: string(action)}
}

// Terminal reports whether no action leaves s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

package ride

// Action is a lifecycle transition request. Entitlement to perform an
// action is decided elsewhere; the machine only answers legality from
// the current status.
type Action string

const (
	ActionCreate   Action = "create"
	ActionAccept   Action = "accept"
	ActionPickup   Action = "pickup"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// transitions is the only legal edge set. A (from, action) pair absent
// from this table is an invalid transition.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionAccept: StatusAccepted,
		ActionCancel: StatusCancelled,
	},
	StatusAccepted: {
		ActionPickup: StatusPickedUp,
		ActionCancel: StatusCancelled,
	},
	StatusPickedUp: {
		ActionComplete: StatusCompleted,
	},
}

// Next returns the status an action leads to from the given status.
// The second result is false when the edge does not exist.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// CanTransition reports whether an action is legal from the given status.
func CanTransition(from Status, action Action) bool {
	_, ok := Next(from, action)
	return ok
}

// ActionFor maps a requested target status onto the transition action
// that produces it. Used when callers name the destination rather than
// the verb.
func ActionFor(target Status) (Action, bool) {
	switch target {
	case StatusAccepted:
		return ActionAccept, true
	case StatusPickedUp:
		return ActionPickup, true
	case StatusCompleted:
		return ActionComplete, true
	case StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

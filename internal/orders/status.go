package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Actor identifies who is requesting a transition.
type Actor string

const (
	ActorWaiter   Actor = "waiter"
	ActorKitchen  Actor = "kitchen"
	ActorCustomer Actor = "customer"
)

// validNext maps from-status to to-status to the actors allowed to perform
// that transition. Terminal statuses have no successors.
var validNext = map[Status]map[Status][]Actor{
	StatusPending: {
		StatusAccepted:  {ActorWaiter},
		StatusRejected:  {ActorWaiter},
		StatusCancelled: {ActorWaiter, ActorCustomer},
	},
	StatusAccepted: {
		StatusPreparing: {ActorKitchen},
		StatusCancelled: {ActorWaiter, ActorCustomer},
	},
	StatusPreparing: {
		StatusReady: {ActorKitchen},
	},
	StatusReady: {
		StatusCompleted: {ActorWaiter, ActorKitchen},
	},
	StatusCompleted: {},
	StatusRejected:  {},
	StatusCancelled: {},
}

// CanTransition reports whether actor may move an order from one status to
// another.
func CanTransition(actor Actor, from, to Status) bool {
	for _, a := range validNext[from][to] {
		if a == actor {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func IsTerminal(s Status) bool {
	return len(validNext[s]) == 0
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

// ValidActor reports whether a is a known actor.
func ValidActor(a Actor) bool {
	return a == ActorWaiter || a == ActorKitchen || a == ActorCustomer
}

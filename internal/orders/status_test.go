package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPending, StatusAccepted, StatusPreparing, StatusReady,
	StatusCompleted, StatusRejected, StatusCancelled,
}

var allActors = []Actor{ActorWaiter, ActorKitchen, ActorCustomer}

// the full set of permitted (actor, from, to) triples
var allowedTriples = map[[3]string]bool{
	{"waiter", "pending", "accepted"}:    true,
	{"waiter", "pending", "rejected"}:    true,
	{"kitchen", "accepted", "preparing"}: true,
	{"kitchen", "preparing", "ready"}:    true,
	{"waiter", "ready", "completed"}:     true,
	{"kitchen", "ready", "completed"}:    true,
	{"waiter", "pending", "cancelled"}:   true,
	{"customer", "pending", "cancelled"}: true,
	{"waiter", "accepted", "cancelled"}:  true,
	{"customer", "accepted", "cancelled"}: true,
}

// Every triple in the transition table is permitted and every other triple
// is denied.
func TestCanTransitionExhaustive(t *testing.T) {
	for _, actor := range allActors {
		for _, from := range allStatuses {
			for _, to := range allStatuses {
				want := allowedTriples[[3]string{string(actor), string(from), string(to)}]
				got := CanTransition(actor, from, to)
				assert.Equalf(t, want, got, "actor=%s from=%s to=%s", actor, from, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusRejected, StatusCancelled} {
		assert.True(t, IsTerminal(s), s)
		for _, actor := range allActors {
			for _, to := range allStatuses {
				assert.Falsef(t, CanTransition(actor, s, to), "terminal %s must not reach %s", s, to)
			}
		}
	}
	for _, s := range []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady} {
		assert.False(t, IsTerminal(s), s)
	}
}

func TestValidStatusAndActor(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("paid"))

	for _, a := range allActors {
		assert.True(t, ValidActor(a))
	}
	assert.False(t, ValidActor("chef"))
}

package ride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransitions_HappyPath walks the full lifecycle forward
func TestTransitions_HappyPath(t *testing.T) {
	next, ok := Next(StatusPending, ActionAccept)
	require.True(t, ok)
	assert.Equal(t, StatusAccepted, next)

	next, ok = Next(StatusAccepted, ActionPickup)
	require.True(t, ok)
	assert.Equal(t, StatusPickedUp, next)

	next, ok = Next(StatusPickedUp, ActionComplete)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, next)
}

// TestTransitions_CancelReachability tests where cancel is legal
func TestTransitions_CancelReachability(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		allowed bool
	}{
		{"cancel from pending", StatusPending, true},
		{"cancel from accepted", StatusAccepted, true},
		{"cancel from picked_up", StatusPickedUp, false},
		{"cancel from completed", StatusCompleted, false},
		{"cancel from cancelled", StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, ActionCancel))
		})
	}
}

// TestTransitions_IllegalEdges tests rejected transitions
func TestTransitions_IllegalEdges(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		action Action
	}{
		{"pickup straight from pending", StatusPending, ActionPickup},
		{"complete straight from pending", StatusPending, ActionComplete},
		{"complete straight from accepted", StatusAccepted, ActionComplete},
		{"accept an accepted ride", StatusAccepted, ActionAccept},
		{"accept a cancelled ride", StatusCancelled, ActionAccept},
		{"anything from completed", StatusCompleted, ActionPickup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, CanTransition(tt.from, tt.action))
		})
	}
}

// TestTerminalStates_HaveNoEdges tests terminal states are dead ends
func TestTerminalStates_HaveNoEdges(t *testing.T) {
	actions := []Action{ActionAccept, ActionPickup, ActionComplete, ActionCancel}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		require.True(t, s.Terminal())
		for _, a := range actions {
			assert.False(t, CanTransition(s, a), "status %s should reject %s", s, a)
		}
	}
}

// TestActionFor_TargetMapping tests target status to action mapping
func TestActionFor_TargetMapping(t *testing.T) {
	a, ok := ActionFor(StatusPickedUp)
	require.True(t, ok)
	assert.Equal(t, ActionPickup, a)

	a, ok = ActionFor(StatusCompleted)
	require.True(t, ok)
	assert.Equal(t, ActionComplete, a)

	a, ok = ActionFor(StatusCancelled)
	require.True(t, ok)
	assert.Equal(t, ActionCancel, a)

	_, ok = ActionFor(StatusPending)
	assert.False(t, ok, "pending is only reachable by creation")
}

// TestParseStatus_RejectsUnknown tests the closed enum boundary
func TestParseStatus_RejectsUnknown(t *testing.T) {
	for _, valid := range []string{"pending", "accepted", "picked_up", "completed", "cancelled"} {
		s, err := ParseStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, Status(valid), s)
	}

	for _, invalid := range []string{"", "PENDING", "picked-up", "done", "assigned"} {
		_, err := ParseStatus(invalid)
		assert.Error(t, err, "status %q should be rejected", invalid)
	}
}

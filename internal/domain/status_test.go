package domain

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCanTransitionTo_ForwardPath(t *testing.T) {
	path := []Status{StatusNew, StatusConfirmed, StatusAssembled, StatusShipped, StatusDelivered}
	for i := 0; i < len(path)-1; i++ {
		assert.Assert(t, CanTransitionTo(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransitionTo_RejectsSkipsAndBackwards(t *testing.T) {
	assert.Assert(t, !CanTransitionTo(StatusNew, StatusAssembled))
	assert.Assert(t, !CanTransitionTo(StatusNew, StatusDelivered))
	assert.Assert(t, !CanTransitionTo(StatusAssembled, StatusConfirmed))
	assert.Assert(t, !CanTransitionTo(StatusShipped, StatusNew))
	assert.Assert(t, !CanTransitionTo(StatusNew, StatusNew))
}

func TestCanTransitionTo_Cancellation(t *testing.T) {
	assert.Assert(t, CanTransitionTo(StatusNew, StatusCancelled))
	assert.Assert(t, CanTransitionTo(StatusConfirmed, StatusCancelled))
	assert.Assert(t, CanTransitionTo(StatusAssembled, StatusCancelled))
	assert.Assert(t, !CanTransitionTo(StatusShipped, StatusCancelled))
}

func TestCanTransitionTo_TerminalStatesAreFinal(t *testing.T) {
	all := []Status{StatusNew, StatusConfirmed, StatusAssembled, StatusShipped, StatusDelivered, StatusCancelled}
	for _, to := range all {
		assert.Assert(t, !CanTransitionTo(StatusDelivered, to))
		assert.Assert(t, !CanTransitionTo(StatusCancelled, to))
	}
	assert.Assert(t, StatusDelivered.IsTerminal())
	assert.Assert(t, StatusCancelled.IsTerminal())
	assert.Assert(t, !StatusShipped.IsTerminal())
}

func TestStatus_IsValid(t *testing.T) {
	assert.Assert(t, StatusCancelled.IsValid())
	assert.Assert(t, StatusAssembled.IsValid())
	assert.Assert(t, !Status("PAID").IsValid())
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"single new", []Status{StatusNew}, StatusNew},
		{"least advanced wins", []Status{StatusShipped, StatusConfirmed, StatusAssembled}, StatusConfirmed},
		{"cancelled ignored", []Status{StatusCancelled, StatusAssembled}, StatusAssembled},
		{"all delivered", []Status{StatusDelivered, StatusDelivered}, StatusDelivered},
		{"all cancelled", []Status{StatusCancelled, StatusCancelled}, StatusCancelled},
		{"delivered and shipped", []Status{StatusDelivered, StatusShipped}, StatusShipped},
		{"delivered and cancelled", []Status{StatusDelivered, StatusCancelled}, StatusDelivered},
		{"empty", nil, StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.statuses))
		})
	}
}

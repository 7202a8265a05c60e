package flow

import (
	"github.com/pkg/errors"
)

// State is the step currently shown on the device. Exactly one is active.
type State uint8

const (
	Idle State = iota
	ReviewTitle
	ReviewPaging
	ReviewApprove
	ReviewReject
	ErrorPaging
	ErrorAck
)

var stateNames = [...]string{
	Idle:          "idle",
	ReviewTitle:   "review-title",
	ReviewPaging:  "review-paging",
	ReviewApprove: "review-approve",
	ReviewReject:  "review-reject",
	ErrorPaging:   "error-paging",
	ErrorAck:      "error-ack",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// ErrInvalidTransition is returned for an edge missing from the graph.
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions is the whole flow graph. Terminal steps only lead back to Idle.
var transitions = map[State]map[State]struct{}{
	Idle: {
		Idle:        {},
		ReviewTitle: {},
		ErrorPaging: {},
	},
	ReviewTitle: {
		ReviewPaging: {},
		ReviewReject: {},
	},
	ReviewPaging: {
		ReviewPaging:  {},
		ReviewApprove: {},
		ReviewReject:  {},
	},
	ReviewApprove: {
		ReviewPaging: {},
		ReviewReject: {},
		Idle:         {},
	},
	ReviewReject: {
		ReviewTitle:   {},
		ReviewApprove: {},
		Idle:          {},
	},
	ErrorPaging: {
		ErrorPaging: {},
		ErrorAck:    {},
	},
	ErrorAck: {
		ErrorPaging: {},
		Idle:        {},
	},
}

type stateMachine struct {
	currentState State
}

func (sm *stateMachine) Transition(nextState State) error {
	if allowedStates, ok := transitions[sm.currentState]; ok {
		if _, ok = allowedStates[nextState]; ok {
			sm.currentState = nextState
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", sm.currentState, nextState)
}

func (sm *stateMachine) Current() State {
	return sm.currentState
}

package domain

import (
	"fmt"
)

// State is a step of the per-request state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateRateChecked      State = "RATE_CHECKED"
	StateIdentityVerified State = "IDENTITY_VERIFIED"
	StateStepUpVerified   State = "STEP_UP_VERIFIED"
	StatePolicyChecked    State = "POLICY_CHECKED"
	StateDecrypted        State = "DECRYPTED"
	StateLogged           State = "LOGGED"
	StateResponded        State = "RESPONDED"
	StateDenied           State = "DENIED"
)

var stateOrder = []State{
	StateReceived,
	StateRateChecked,
	StateIdentityVerified,
	StateStepUpVerified,
	StatePolicyChecked,
	StateDecrypted,
	StateLogged,
	StateResponded,
}

// Progress tracks one request. It only moves to the next state in order or
// terminates in StateDenied; terminal states never change.
type Progress struct {
	current int
	denied  bool
	trail   []State
}

// NewProgress starts a request in StateReceived.
func NewProgress() *Progress {
	return &Progress{trail: []State{StateReceived}}
}

// State returns the current state.
func (p *Progress) State() State {
	if p.denied {
		return StateDenied
	}
	return stateOrder[p.current]
}

// Trail returns every state visited so far.
func (p *Progress) Trail() []State {
	return append([]State(nil), p.trail...)
}

// Advance moves to next, which must be the immediate successor.
func (p *Progress) Advance(next State) error {
	if p.terminal() {
		return fmt.Errorf("request already finished in %s", p.State())
	}
	if p.current+1 >= len(stateOrder) || stateOrder[p.current+1] != next {
		return fmt.Errorf("illegal transition %s -> %s", p.State(), next)
	}
	p.current++
	p.trail = append(p.trail, next)
	return nil
}

// Deny terminates the request.
func (p *Progress) Deny() {
	if p.terminal() {
		return
	}
	p.denied = true
	p.trail = append(p.trail, StateDenied)
}

func (p *Progress) terminal() bool {
	return p.denied || stateOrder[p.current] == StateResponded
}

package client

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

// Session states.
const (
	StateDisconnected = "DISCONNECTED"
	StateConnected    = "CONNECTED"
	StateSignedOn     = "SIGNED_ON"
)

// Session tracks the client's link state: connected once a response
// arrives, signed on after an approved logon.
type Session struct {
	fsm *fsm.FSM
}

// NewSession returns a disconnected session.
func NewSession() *Session {
	s := &Session{}
	s.fsm = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: "connect", Src: []string{StateDisconnected}, Dst: StateConnected},
			{Name: "logon", Src: []string{StateConnected}, Dst: StateSignedOn},
			{Name: "logoff", Src: []string{StateSignedOn}, Dst: StateConnected},
			{Name: "disconnect", Src: []string{StateConnected, StateSignedOn}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug().
					Str("event", "session_state").
					Str("from", e.Src).
					Str("to", e.Dst).
					Msg("session state changed")
			},
		},
	)

	return s
}

// State returns the current state.
func (s *Session) State() string {
	return s.fsm.Current()
}

// SignedOn reports whether an approved logon is in effect.
func (s *Session) SignedOn() bool {
	return s.fsm.Is(StateSignedOn)
}

// Connect marks the link as up.
func (s *Session) Connect() error { return s.event("connect") }

// Logon records an approved logon, connecting first when needed.
func (s *Session) Logon() error {
	if err := s.Connect(); err != nil {
		return err
	}

	return s.event("logon")
}

// Logoff records an approved logoff.
func (s *Session) Logoff() error { return s.event("logoff") }

// Disconnect marks the link as down.
func (s *Session) Disconnect() error { return s.event("disconnect") }

// event fires name, treating an event that is not valid in the current state as a no-op.
func (s *Session) event(name string) error {
	if !s.fsm.Can(name) {
		return nil
	}
	err := s.fsm.Event(context.Background(), name)
	if err != nil && !errors.As(err, &fsm.NoTransitionError{}) {
		return err
	}

	return nil
}

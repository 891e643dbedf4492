// Package security simulates the card security functions the endpoints
// rely on: ISO format 0 PIN blocks, PIN verification values, card
// verification values and random key material. It is deterministic apart
// from key and PIN generation and holds no mutable state.
package security

import (
	"crypto/rand"
	"errors"
	"io"
)

var (
	// ErrInvalidInput is returned for missing or out of range inputs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFormat is returned for malformed PIN blocks and expiry dates.
	ErrFormat = errors.New("invalid format")
)

// Simulator is the security engine. It is safe for concurrent use.
type Simulator struct {
	random io.Reader
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRandom sets the entropy source used for key and PIN generation.
func WithRandom(r io.Reader) Option {
	return func(s *Simulator) {
		s.random = r
	}
}

// New creates a Simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{random: rand.Reader}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

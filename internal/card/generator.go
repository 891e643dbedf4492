package card

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Defaults applied to generated cards.
const (
	DefaultExpiry      = "2912"
	DefaultProduct     = "GOLD"
	DefaultSourceID    = "GEN_SRC"
	DefaultServiceCode = "101"
	generatedPinLength = 4
)

var (
	defaultPerTxnLimit = decimal.RequireFromString("2000.00")
	defaultDailyLimit  = decimal.RequireFromString("10000.00")

	// ErrInvalidPrefix is returned for non-numeric prefixes or prefixes that leave no room for a check digit.
	ErrInvalidPrefix = errors.New("invalid card prefix")
)

// Security derives card verification data.
type Security interface {
	GeneratePin(length int) (string, error)
	DerivePVV(pan, pin string) (string, error)
	DeriveCVV(pan, expiry, serviceCode string) (string, error)
}

// Generator creates new Luhn-valid cards.
type Generator struct {
	sec    Security
	random io.Reader
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRandom sets the entropy source for PAN body digits.
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.random = r
	}
}

// NewGenerator returns a Generator deriving PIN data through sec.
func NewGenerator(sec Security, opts ...GeneratorOption) *Generator {
	g := &Generator{sec: sec, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate creates an active card with a PAN of length digits starting with prefix.
func (g *Generator) Generate(prefix string, length int) (*Card, error) {
	if prefix == "" || length < 13 || length > 19 || len(prefix) >= length {
		return nil, fmt.Errorf("%w: prefix %q length %d", ErrInvalidPrefix, prefix, length)
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < '0' || prefix[i] > '9' {
			return nil, fmt.Errorf("%w: %q is not numeric", ErrInvalidPrefix, prefix)
		}
	}

	body := make([]byte, length-len(prefix)-1)
	if _, err := io.ReadFull(g.random, body); err != nil {
		return nil, fmt.Errorf("generate pan: %w", err)
	}
	for i, b := range body {
		body[i] = '0' + b%10
	}
	partial := prefix + string(body)
	pan := fmt.Sprintf("%s%d", partial, LuhnCheckDigit(partial))

	pin, err := g.sec.GeneratePin(generatedPinLength)
	if err != nil {
		return nil, err
	}
	pvv, err := g.sec.DerivePVV(pan, pin)
	if err != nil {
		return nil, err
	}
	cvv, err := g.sec.DeriveCVV(pan, DefaultExpiry, DefaultServiceCode)
	if err != nil {
		return nil, err
	}

	return &Card{
		Prefix:      prefix,
		PANLength:   length,
		PAN:         pan,
		Expiry:      DefaultExpiry,
		PIN:         pin,
		PVV:         pvv,
		CVV:         cvv,
		Status:      StatusActive,
		Product:     DefaultProduct,
		Scheme:      SchemeFor(pan),
		PerTxnLimit: defaultPerTxnLimit,
		DailyLimit:  defaultDailyLimit,
		SourceID:    DefaultSourceID,
	}, nil
}

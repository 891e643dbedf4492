// Package card holds the card record used to build and validate messages.
package card

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a card.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
)

// ParseStatus normalises s. Anything other than BLOCKED is treated as active.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusBlocked)) {
		return StatusBlocked
	}

	return StatusActive
}

// Scheme names.
const (
	SchemeVisa       = "VISA"
	SchemeMastercard = "MASTERCARD"
	SchemeAmex       = "AMEX"
	SchemeUnknown    = "UNKNOWN"
)

// Card is one card record.
type Card struct {
	Prefix      string
	PANLength   int
	PAN         string
	Expiry      string // YYMM
	PIN         string
	PVV         string
	CVV         string
	Status      Status
	Product     string
	Scheme      string
	PerTxnLimit decimal.Decimal
	DailyLimit  decimal.Decimal
	SourceID    string
	Selected    bool
}

// BIN returns the card prefix, falling back to the first six PAN digits.
func (c *Card) BIN() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	if len(c.PAN) >= 6 {
		return c.PAN[:6]
	}

	return c.PAN
}

// Blocked reports whether the card is blocked.
func (c *Card) Blocked() bool {
	return c.Status == StatusBlocked
}

// SchemeFor infers the payment scheme from the leading PAN digits.
func SchemeFor(pan string) string {
	switch {
	case strings.HasPrefix(pan, "4"):
		return SchemeVisa
	case strings.HasPrefix(pan, "5"):
		return SchemeMastercard
	case strings.HasPrefix(pan, "34"), strings.HasPrefix(pan, "37"):
		return SchemeAmex
	default:
		return SchemeUnknown
	}
}

// MaskPAN keeps the first six and last four digits.
func MaskPAN(pan string) string {
	if len(pan) <= 10 {
		return pan
	}

	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

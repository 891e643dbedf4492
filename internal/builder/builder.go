// Package builder constructs outbound request messages for each transaction
// category from the selected card and the variant profile.
package builder

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// Category is a transaction category.
type Category int

const (
	Echo Category = iota + 1
	Logon
	Logoff
	KeyExchange
	PreAuth
	Purchase
	BalanceInquiry
	Withdrawal
	Refund
	PurchaseReversal
	WithdrawalReversal
	CreateCard
	UpdateCardStatus
	SyncCard
)

var categoryNames = map[Category]string{
	Echo:               "echo",
	Logon:              "logon",
	Logoff:             "logoff",
	KeyExchange:        "key_exchange",
	PreAuth:            "pre_auth",
	Purchase:           "purchase",
	BalanceInquiry:     "balance_inquiry",
	Withdrawal:         "withdrawal",
	Refund:             "refund",
	PurchaseReversal:   "purchase_reversal",
	WithdrawalReversal: "withdrawal_reversal",
	CreateCard:         "create_card",
	UpdateCardStatus:   "update_card_status",
	SyncCard:           "sync_card",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}

	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory maps a category name back to its value.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

var (
	// ErrUnknownCategory is returned for categories without a builder.
	ErrUnknownCategory = errors.New("unknown transaction category")
	// ErrMissingOriginal is returned when a reversal lacks a usable original message.
	ErrMissingOriginal = errors.New("reversal requires original message")
	// ErrMissingCard is returned when a sync is requested without a card.
	ErrMissingCard = errors.New("card required")
)

// Demo values carried when nothing else is configured.
const (
	DefaultTerminalID   = "TERM0001"
	DefaultMerchantID   = "MERCHANT0000001"
	DefaultAcquirerID   = "123456"
	FallbackPAN         = "1234567890123456"
	FallbackExpiry      = "2912"
	FallbackCreateExp   = "1230"
	MerchantType        = "5999"
	POSEntryMode        = "021"
	POSConditionCode    = "00"
	CurrencyUSD         = "840"
	CardMasterFile      = "CARD_MASTER"
	ServiceCode         = "101"
	KeyExchangePayload  = "1234567890ABCDEF1234567890ABCDEF"
	FileUpdateAdd       = "1"
	FileUpdateChange    = "2"
	rrnSuffix           = "1"
	zeroInstitutionID   = "00000000000"
	institutionIDLength = 11
)

// Security forms the PIN block attached to financial requests.
type Security interface {
	FormPinBlock(pin, pan string) ([]byte, error)
}

// Request describes one message to build.
type Request struct {
	Category Category
	// Card is the selected card. Nil falls back to demo values.
	Card *card.Card
	// Original is the request being reversed.
	Original *message.Message
	// Status is the new status for UpdateCardStatus. Empty means BLOCKED.
	Status card.Status
}

type buildFunc func(*Builder, Request) (*message.Message, error)

// Builder creates request messages. It is safe for concurrent use.
type Builder struct {
	profile    iso8583.Profile
	sec        Security
	now        func() time.Time
	terminalID string
	merchantID string
	acquirerID string

	mu   sync.Mutex
	rand *rand.Rand

	table map[Category]buildFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRand sets the random source for trace numbers.
func WithRand(r *rand.Rand) Option {
	return func(b *Builder) { b.rand = r }
}

// WithTerminal sets the terminal id.
func WithTerminal(id string) Option {
	return func(b *Builder) { b.terminalID = id }
}

// WithMerchant sets the merchant id.
func WithMerchant(id string) Option {
	return func(b *Builder) { b.merchantID = id }
}

// WithAcquirer sets the acquiring institution id.
func WithAcquirer(id string) Option {
	return func(b *Builder) { b.acquirerID = id }
}

// New returns a Builder for profile using sec for PIN blocks.
func New(profile iso8583.Profile, sec Security, opts ...Option) *Builder {
	b := &Builder{
		profile:    profile,
		sec:        sec,
		now:        time.Now,
		terminalID: DefaultTerminalID,
		merchantID: DefaultMerchantID,
		acquirerID: DefaultAcquirerID,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.table = map[Category]buildFunc{
		Echo:               networkBuilder(func(p iso8583.Profile) string { return p.EchoCode }),
		Logon:              networkBuilder(func(p iso8583.Profile) string { return p.LogonCode }),
		Logoff:             networkBuilder(func(p iso8583.Profile) string { return p.LogoffCode }),
		KeyExchange:        (*Builder).keyExchange,
		PreAuth:            (*Builder).financial,
		Purchase:           (*Builder).financial,
		BalanceInquiry:     (*Builder).financial,
		Withdrawal:         (*Builder).financial,
		Refund:             (*Builder).financial,
		PurchaseReversal:   (*Builder).reversal,
		WithdrawalReversal: (*Builder).reversal,
		CreateCard:         (*Builder).createCard,
		UpdateCardStatus:   (*Builder).updateCardStatus,
		SyncCard:           (*Builder).syncCard,
	}

	return b
}

// Profile returns the variant profile the builder targets.
func (b *Builder) Profile() iso8583.Profile {
	return b.profile
}

// Build constructs the request message for req.
func (b *Builder) Build(req Request) (*message.Message, error) {
	fn, ok := b.table[req.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, req.Category)
	}

	return fn(b, req)
}

func (b *Builder) stan() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	if b.rand != nil {
		n = b.rand.IntN(1000000)
	} else {
		n = rand.IntN(1000000)
	}

	return fmt.Sprintf("%06d", n)
}

// base sets the transmission timestamp and trace number.
func (b *Builder) base(mti string, now time.Time) *message.Message {
	m := message.New(mti)
	m.SetString(message.TransmissionDateTime, now.Format("0102150405"))
	m.SetString(message.STAN, b.stan())

	return m
}

// RRN returns the 12 digit retrieval reference number for stan at now:
// day of year, hour, trace number and a fixed suffix.
func RRN(now time.Time, stan string) string {
	return fmt.Sprintf("%03d%02d%s%s", now.YearDay(), now.Hour(), stan, rrnSuffix)
}

func networkBuilder(code func(iso8583.Profile) string) buildFunc {
	return func(b *Builder, _ Request) (*message.Message, error) {
		m := b.base(b.profile.NetworkMTI, b.now())
		m.SetString(b.profile.SubFunctionField, code(b.profile))

		return m, nil
	}
}

func (b *Builder) keyExchange(_ Request) (*message.Message, error) {
	m := b.base(b.profile.NetworkMTI, b.now())
	m.SetString(b.profile.SubFunctionField, b.profile.KeyExchangeCode)
	m.SetString(message.AdditionalData, KeyExchangePayload)

	return m, nil
}

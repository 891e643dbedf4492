// Package dispatcher classifies inbound requests and synthesises the
// response for each, validating card security data before approving
// financial requests.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andrei-cloud/go_cardsim/internal/errorcodes"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// ErrMalformedMessage is returned for requests that cannot be classified; no response is produced.
var ErrMalformedMessage = errors.New("malformed message")

// DefaultBalance is the synthetic available balance reported to balance inquiries.
var DefaultBalance = decimal.RequireFromString("123.45")

// Kind is the broad category of an inbound request.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindFinancial  Kind = "financial"
	KindReversal   Kind = "reversal"
	KindFileAction Kind = "file_action"
	KindUnknown    Kind = "unknown"
)

// Result describes how a request was handled.
type Result struct {
	Kind         Kind
	Operation    string
	ResponseCode errorcodes.ResponseCode
}

// Security validates card data carried by financial requests.
type Security interface {
	ExtractPin(block []byte, pan string) (string, error)
	VerifyPVV(pan, pin, pvv string) (bool, error)
	VerifyCVV(pan, expiry, serviceCode, cvv string) (bool, error)
}

type handlerFunc func(*Dispatcher, *message.Message) (*message.Message, Result)

// Dispatcher answers requests for one wire variant. It keeps no state
// between requests and is safe for concurrent use.
type Dispatcher struct {
	profile iso8583.Profile
	sec     Security
	balance decimal.Decimal

	mu   sync.Mutex
	rand *rand.Rand

	routes map[string]handlerFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBalance sets the balance reported to balance inquiries.
func WithBalance(d decimal.Decimal) Option {
	return func(disp *Dispatcher) { disp.balance = d }
}

// WithRand sets the random source for authorization codes.
func WithRand(r *rand.Rand) Option {
	return func(disp *Dispatcher) { disp.rand = r }
}

// New returns a Dispatcher for profile validating through sec.
func New(profile iso8583.Profile, sec Security, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		profile: profile,
		sec:     sec,
		balance: DefaultBalance,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.routes = map[string]handlerFunc{
		profile.NetworkMTI:    (*Dispatcher).network,
		profile.AuthorizeMTI:  (*Dispatcher).financial,
		profile.FinancialMTI:  (*Dispatcher).financial,
		profile.ReversalMTI:   (*Dispatcher).reversal,
		profile.FileActionMTI: (*Dispatcher).fileAction,
	}

	return d
}

// Dispatch classifies req and returns its response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *message.Message) (*message.Message, Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, Result{}, err
	}
	if req == nil || !message.ValidMTI(req.MTI()) {
		mti := ""
		if req != nil {
			mti = req.MTI()
		}

		return nil, Result{}, fmt.Errorf("%w: mti %q", ErrMalformedMessage, mti)
	}

	handle, ok := d.routes[req.MTI()]
	if !ok {
		handle = (*Dispatcher).unknown
	}

	resp, res := handle(d, req)

	log.Debug().
		Str("event", "request_dispatched").
		Str("mti", req.MTI()).
		Str("kind", string(res.Kind)).
		Str("operation", res.Operation).
		Str("response_code", res.ResponseCode.CodeOnly()).
		Msg("request classified")

	return resp, res, nil
}

// respond builds the shared response: response MTI, echoed correlation fields and field 39.
func (d *Dispatcher) respond(req *message.Message, rc errorcodes.ResponseCode) *message.Message {
	resp := message.New(message.ResponseMTI(req.MTI()))

	for _, id := range []int{
		message.TransmissionDateTime,
		message.STAN,
		d.profile.SubFunctionField,
		message.TerminalID,
		message.MerchantID,
		message.RRN,
		message.Currency,
	} {
		if req.Has(id) {
			resp.Set(id, req.Get(id))
		}
	}
	resp.SetString(message.ResponseCode, rc.CodeOnly())

	return resp
}

func (d *Dispatcher) authCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int
	if d.rand != nil {
		n = d.rand.IntN(1000000)
	} else {
		n = rand.IntN(1000000)
	}

	return fmt.Sprintf("%06d", n)
}

func (d *Dispatcher) network(req *message.Message) (*message.Message, Result) {
	code := req.GetString(d.profile.SubFunctionField)

	var op string
	switch code {
	case d.profile.EchoCode:
		op = "echo"
	case d.profile.LogonCode:
		op = "logon"
	case d.profile.LogoffCode:
		op = "logoff"
	case d.profile.KeyExchangeCode:
		op = "key_exchange"
	default:
		return d.respond(req, errorcodes.Unrecognized), Result{
			Kind:         KindNetwork,
			Operation:    "unknown",
			ResponseCode: errorcodes.Unrecognized,
		}
	}

	resp := d.respond(req, errorcodes.Approved)
	if op == "key_exchange" {
		resp.SetString(message.AdditionalData, KeyExchangeResponse)
	}

	return resp, Result{Kind: KindNetwork, Operation: op, ResponseCode: errorcodes.Approved}
}

// KeyExchangeResponse is the dummy key returned to key exchange requests.
const KeyExchangeResponse = "FEDCBA0987654321FEDCBA0987654321"

func (d *Dispatcher) reversal(req *message.Message) (*message.Message, Result) {
	op := "reversal"
	switch req.GetString(message.ProcessingCode) {
	case "000000":
		op = "purchase_reversal"
	case "010000":
		op = "withdrawal_reversal"
	}

	return d.respond(req, errorcodes.Approved), Result{
		Kind:         KindReversal,
		Operation:    op,
		ResponseCode: errorcodes.Approved,
	}
}

func (d *Dispatcher) fileAction(req *message.Message) (*message.Message, Result) {
	op := "file_action"
	switch req.GetString(message.FileUpdateCode) {
	case "1":
		op = "create_card"
	case "2":
		op = "update_card"
	}

	resp := d.respond(req, errorcodes.Approved)
	for _, id := range []int{message.FileUpdateCode, message.FileName} {
		if req.Has(id) {
			resp.Set(id, req.Get(id))
		}
	}

	return resp, Result{Kind: KindFileAction, Operation: op, ResponseCode: errorcodes.Approved}
}

func (d *Dispatcher) unknown(req *message.Message) (*message.Message, Result) {
	return d.respond(req, errorcodes.Unrecognized), Result{
		Kind:         KindUnknown,
		Operation:    "unknown",
		ResponseCode: errorcodes.Unrecognized,
	}
}

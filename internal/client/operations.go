package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// Default card prefixes used by generate and sync, per variant.
const (
	DefaultASCIIPrefix  = "453211"
	DefaultBinaryPrefix = "541234"
	generatedPANLength  = 16
)

// Transport sends one request and returns its response.
type Transport interface {
	RoundTrip(ctx context.Context, req *message.Message) (*message.Message, error)
}

// Exchange is one request and the response it received.
type Exchange struct {
	Request  *message.Message
	Response *message.Message
}

// Outcome is the result of running an operation. Reversal operations
// produce two exchanges, the original first.
type Outcome struct {
	Exchanges []Exchange
	// Card is the card the operation used or generated, if any.
	Card *card.Card
}

// Last returns the final exchange.
func (o *Outcome) Last() Exchange {
	return o.Exchanges[len(o.Exchanges)-1]
}

// ResponseCode returns field 39 of the final response.
func (o *Outcome) ResponseCode() string {
	return o.Last().Response.GetString(message.ResponseCode)
}

// Runner holds what operations need to build, send and persist.
type Runner struct {
	Transport Transport
	Builder   *builder.Builder
	Store     cardstore.Store
	Generator *card.Generator
	Session   *Session
	Prefix    string
}

// Operation is one entry of the operator menu.
type Operation struct {
	Name  string
	Label string
	Run   func(ctx context.Context, r *Runner) (*Outcome, error)
}

// Operations lists every operation in menu order.
var Operations = []Operation{
	{Name: "echo", Label: "Send Echo Request", Run: send(builder.Echo, false)},
	{Name: "logon", Label: "Send Logon Request", Run: send(builder.Logon, false)},
	{Name: "logoff", Label: "Send Logoff Request", Run: send(builder.Logoff, false)},
	{Name: "key-exchange", Label: "Send Key Exchange", Run: send(builder.KeyExchange, false)},
	{Name: "create-card", Label: "Send Create Card", Run: send(builder.CreateCard, true)},
	{Name: "update-card-status", Label: "Send Update Card Status", Run: updateCardStatus},
	{Name: "generate-sync", Label: "Generate & Sync New Card", Run: generateAndSync},
	{Name: "pre-auth", Label: "Send Pre-Authorization", Run: send(builder.PreAuth, true)},
	{Name: "balance", Label: "Send Balance Inquiry", Run: send(builder.BalanceInquiry, true)},
	{Name: "purchase", Label: "Send Purchase", Run: send(builder.Purchase, true)},
	{
		Name:  "purchase-reversal",
		Label: "Send Purchase Reversal",
		Run:   reverse(builder.Purchase, builder.PurchaseReversal),
	},
	{Name: "withdrawal", Label: "Send Withdrawal", Run: send(builder.Withdrawal, true)},
	{
		Name:  "withdrawal-reversal",
		Label: "Send Withdrawal Reversal",
		Run:   reverse(builder.Withdrawal, builder.WithdrawalReversal),
	},
	{Name: "refund", Label: "Send Refund", Run: send(builder.Refund, true)},
}

// ErrUnknownOperation is returned by Lookup for unknown names.
var ErrUnknownOperation = errors.New("unknown operation")

// Lookup finds an operation by name.
func Lookup(name string) (Operation, error) {
	for _, op := range Operations {
		if op.Name == name {
			return op, nil
		}
	}

	return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// DefaultPrefix returns the generation prefix for variant.
func DefaultPrefix(v iso8583.Variant) string {
	if v == iso8583.VariantBinary {
		return DefaultBinaryPrefix
	}

	return DefaultASCIIPrefix
}

// selectedCard loads the working card. Store failures fall back to demo values.
func (r *Runner) selectedCard(ctx context.Context) *card.Card {
	if r.Store == nil {
		return nil
	}
	c, err := r.Store.LoadSelectedOrFirst(ctx)
	if err != nil {
		log.Warn().
			Str("event", "card_load_error").
			Err(err).
			Msg("failed to load card, using fallback values")

		return nil
	}

	return c
}

// exchange builds and sends one request.
func (r *Runner) exchange(ctx context.Context, req builder.Request) (Exchange, error) {
	msg, err := r.Builder.Build(req)
	if err != nil {
		return Exchange{}, err
	}

	log.Info().
		Str("event", "request_sent").
		Str("operation", req.Category.String()).
		Str("mti", msg.MTI()).
		Msg("sending request")

	resp, err := r.Transport.RoundTrip(ctx, msg)
	if err != nil {
		return Exchange{Request: msg}, err
	}

	log.Info().
		Str("event", "response_received").
		Str("operation", req.Category.String()).
		Str("mti", resp.MTI()).
		Str("response_code", resp.GetString(message.ResponseCode)).
		Msg("received response")

	r.track(req.Category, resp)

	return Exchange{Request: msg, Response: resp}, nil
}

// track advances the session on approved logon and logoff responses.
func (r *Runner) track(c builder.Category, resp *message.Message) {
	if r.Session == nil || resp.GetString(message.ResponseCode) != "00" {
		return
	}

	var err error
	switch c {
	case builder.Logon:
		err = r.Session.Logon()
	case builder.Logoff:
		err = r.Session.Logoff()
	}
	if err != nil {
		log.Warn().Err(err).Msg("session transition failed")
	}
}

func send(c builder.Category, needsCard bool) func(context.Context, *Runner) (*Outcome, error) {
	return func(ctx context.Context, r *Runner) (*Outcome, error) {
		var cd *card.Card
		if needsCard {
			cd = r.selectedCard(ctx)
		}

		ex, err := r.exchange(ctx, builder.Request{Category: c, Card: cd})
		if err != nil {
			return nil, err
		}

		return &Outcome{Exchanges: []Exchange{ex}, Card: cd}, nil
	}
}

// reverse sends the original transaction and then its reversal.
func reverse(orig, rev builder.Category) func(context.Context, *Runner) (*Outcome, error) {
	return func(ctx context.Context, r *Runner) (*Outcome, error) {
		cd := r.selectedCard(ctx)

		first, err := r.exchange(ctx, builder.Request{Category: orig, Card: cd})
		if err != nil {
			return nil, err
		}

		second, err := r.exchange(ctx, builder.Request{Category: rev, Original: first.Request})
		if err != nil {
			return nil, err
		}

		return &Outcome{Exchanges: []Exchange{first, second}, Card: cd}, nil
	}
}

// updateCardStatus blocks the selected card and persists the change once approved.
func updateCardStatus(ctx context.Context, r *Runner) (*Outcome, error) {
	cd := r.selectedCard(ctx)

	ex, err := r.exchange(ctx, builder.Request{
		Category: builder.UpdateCardStatus,
		Card:     cd,
		Status:   card.StatusBlocked,
	})
	if err != nil {
		return nil, err
	}

	if cd != nil && r.Store != nil && ex.Response.GetString(message.ResponseCode) == "00" {
		if err := r.Store.UpdateStatus(ctx, cd.PAN, card.StatusBlocked); err != nil {
			log.Error().
				Str("event", "card_store_error").
				Str("pan", card.MaskPAN(cd.PAN)).
				Err(err).
				Msg("failed to persist card status")
		} else {
			cd.Status = card.StatusBlocked
		}
	}

	return &Outcome{Exchanges: []Exchange{ex}, Card: cd}, nil
}

// generateAndSync creates a card, announces it and appends it to the store.
func generateAndSync(ctx context.Context, r *Runner) (*Outcome, error) {
	if r.Generator == nil {
		return nil, errors.New("card generator not configured")
	}

	prefix := r.Prefix
	if prefix == "" {
		prefix = DefaultPrefix(r.Builder.Profile().Variant)
	}

	cd, err := r.Generator.Generate(prefix, generatedPANLength)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("event", "card_generated").
		Str("pan", card.MaskPAN(cd.PAN)).
		Str("scheme", cd.Scheme).
		Msg("generated new card")

	ex, err := r.exchange(ctx, builder.Request{Category: builder.SyncCard, Card: cd})
	if err != nil {
		return nil, err
	}

	if r.Store != nil {
		if err := r.Store.AppendGenerated(ctx, cd); err != nil {
			log.Error().
				Str("event", "card_store_error").
				Str("pan", card.MaskPAN(cd.PAN)).
				Err(err).
				Msg("failed to save generated card")
		}
	}

	return &Outcome{Exchanges: []Exchange{ex}, Card: cd}, nil
}

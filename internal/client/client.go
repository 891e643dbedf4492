// Package client sends requests to an endpoint over anet and runs the
// operator-facing transaction operations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// ErrConnection wraps every transport failure.
var ErrConnection = errors.New("connection error")

// Client exchanges messages with one endpoint.
type Client struct {
	addr    string
	codec   *iso8583.Codec
	pool    anet.Pool
	broker  anet.Broker
	session *Session
	timeout time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	poolSize    int
	dialTimeout time.Duration
	timeout     time.Duration
}

// WithPoolSize sets the number of pooled connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithTimeout bounds a single round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// New returns a Client for addr. Connections are dialled lazily.
func New(addr string, codec *iso8583.Codec, opts ...Option) *Client {
	o := options{poolSize: 1, dialTimeout: 2 * time.Second, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, o.dialTimeout)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(uint32(o.poolSize), factory, addr, nil)
	broker := anet.NewBroker([]anet.Pool{pool}, o.poolSize, nil, nil)
	go broker.Start() //nolint:errcheck

	return &Client{
		addr:    addr,
		codec:   codec,
		pool:    pool,
		broker:  broker,
		session: NewSession(),
		timeout: o.timeout,
	}
}

// Session returns the client's session state machine.
func (c *Client) Session() *Session {
	return c.session
}

// Variant returns the wire variant spoken by the client.
func (c *Client) Variant() iso8583.Variant {
	return c.codec.Variant()
}

// RoundTrip sends req and waits for its response.
func (c *Client) RoundTrip(ctx context.Context, req *message.Message) (*message.Message, error) {
	raw, err := c.codec.Pack(req)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := c.broker.Send(&raw)
		done <- result{data: data, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		if err := c.session.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("session disconnect failed")
		}
		log.Error().
			Str("event", "transport_error").
			Str("address", c.addr).
			Str("mti", req.MTI()).
			Err(res.err).
			Msg("round trip failed")

		return nil, fmt.Errorf("%w: %v", ErrConnection, res.err)
	}
	if err := c.session.Connect(); err != nil {
		log.Warn().Err(err).Msg("session connect failed")
	}

	resp, err := c.codec.Unpack(res.data)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("event", "round_trip").
		Str("mti", req.MTI()).
		Str("response_mti", resp.MTI()).
		Str("response_code", resp.GetString(message.ResponseCode)).
		Msg("received response")

	return resp, nil
}

// Close stops the broker and closes pooled connections.
func (c *Client) Close() error {
	c.broker.Close()
	c.pool.Close()

	return c.session.Disconnect()
}

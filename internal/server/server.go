// Package server exposes the request dispatcher over length-framed TCP.
package server

import (
	"context"
	"fmt"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/errorcodes"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/logging"
	"github.com/andrei-cloud/go_cardsim/internal/message"
)

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// Dispatcher answers decoded requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *message.Message) (*message.Message, dispatcher.Result, error)
}

// Stats is a snapshot of server counters.
type Stats struct {
	Variant     string `json:"variant"`
	ActiveConns int32  `json:"active_connections"`
	Requests    uint64 `json:"requests"`
	Approved    uint64 `json:"approved"`
	Declined    uint64 `json:"declined"`
	Malformed   uint64 `json:"malformed"`
}

// Server wraps the anet TCP server and the request dispatcher.
type Server struct {
	address    string
	srv        *anetserver.Server
	codec      *iso8583.Codec
	dispatcher Dispatcher

	activeConns atomic.Int32
	requests    atomic.Uint64
	approved    atomic.Uint64
	declined    atomic.Uint64
	malformed   atomic.Uint64
}

// NewServer configures and returns the endpoint server.
func NewServer(address string, codec *iso8583.Codec, d Dispatcher) (*Server, error) {
	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{
		address:    address,
		codec:      codec,
		dispatcher: d,
	}
	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for connections. It blocks until the server stops.
func (s *Server) Start() error {
	log.Info().
		Str("address", s.address).
		Str("variant", string(s.codec.Variant())).
		Msg("server started")

	return s.srv.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Variant:     string(s.codec.Variant()),
		ActiveConns: s.activeConns.Load(),
		Requests:    s.requests.Load(),
		Approved:    s.approved.Load(),
		Declined:    s.declined.Load(),
		Malformed:   s.malformed.Load(),
	}
}

// handle runs one receive, dispatch and send exchange. Requests that cannot
// be decoded or classified get no response.
func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	s.activeConns.Inc()
	defer s.activeConns.Dec()
	s.requests.Inc()

	exchangeID := uuid.NewString()
	start := time.Now()
	log.Debug().
		Str("event", "handle_start").
		Str("exchange_id", exchangeID).
		Str("client_ip", client).
		Msg("starting request handling")

	req, err := s.codec.Unpack(data)
	if err != nil {
		s.malformed.Inc()
		log.Error().
			Str("event", "malformed_request").
			Str("exchange_id", exchangeID).
			Str("client_ip", client).
			Err(err).
			Msg("failed to decode request")

		return nil, err
	}

	logging.LogRequest(exchangeID, client, req.MTI(), data, int(s.activeConns.Load()))
	log.Debug().Str("exchange_id", exchangeID).Msg("request fields\n" + req.Trace())

	resp, res, err := s.dispatcher.Dispatch(context.Background(), req)
	if err != nil {
		s.malformed.Inc()
		log.Error().
			Str("event", "dispatch_error").
			Str("exchange_id", exchangeID).
			Str("client_ip", client).
			Str("mti", req.MTI()).
			Err(err).
			Msg("failed to dispatch request")

		return nil, err
	}

	out, err := s.codec.Pack(resp)
	if err != nil {
		log.Error().
			Str("event", "pack_error").
			Str("exchange_id", exchangeID).
			Str("client_ip", client).
			Str("mti", resp.MTI()).
			Err(err).
			Msg("failed to encode response, answering system malfunction")

		resp = s.malfunction(req, resp.MTI())
		if out, err = s.codec.Pack(resp); err != nil {
			return nil, err
		}
		res.ResponseCode = errorcodes.SystemMalfunc
	}

	if res.ResponseCode.IsApproved() {
		s.approved.Inc()
	} else {
		s.declined.Inc()
	}

	logging.LogResponse(exchangeID, client, req.MTI(), resp.MTI(), out,
		res.ResponseCode.CodeOnly(), int(s.activeConns.Load()))

	log.Debug().
		Str("event", "handle_done").
		Str("exchange_id", exchangeID).
		Str("kind", string(res.Kind)).
		Str("operation", res.Operation).
		Str("duration", time.Since(start).String()).
		Msg("completed request handling")

	return out, nil
}

// malfunction is the reduced response sent when the dispatcher's answer
// cannot be encoded: the trace fields of req and a 96 response code.
func (s *Server) malfunction(req *message.Message, mti string) *message.Message {
	resp := message.New(mti)
	for _, id := range []int{message.TransmissionDateTime, message.STAN, message.RRN, message.TerminalID} {
		if req.Has(id) && s.codec.Supports(id) {
			resp.Set(id, req.Get(id))
		}
	}
	resp.SetString(message.ResponseCode, errorcodes.SystemMalfunc.CodeOnly())

	return resp
}

// Package logging configures the global zerolog logger and provides the
// structured helpers used to log message exchanges.
package logging

import (
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes the optional rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// Option adjusts logger initialisation.
type Option func(*options)

type options struct {
	file   *FileConfig
	stdout io.Writer
}

// WithFile additionally writes JSON logs to a size-rotated file.
func WithFile(cfg FileConfig) Option {
	return func(o *options) {
		if cfg.Path != "" {
			o.file = &cfg
		}
	}
}

// WithOutput replaces standard output as the console destination.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool, opts ...Option) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano // always initialize base logger with timestamp.

	var console io.Writer = o.stdout
	if human {
		console = zerolog.ConsoleWriter{
			Out:        o.stdout,
			TimeFormat: time.RFC3339Nano,
		}
	}

	out := console
	if o.file != nil {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   o.file.Path,
			MaxSize:    o.file.MaxSizeMB,
			MaxBackups: o.file.MaxBackups,
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel) // set debug level.
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // set info level.
	}
}

// LogRequest logs a received message with structured fields.
func LogRequest(
	exchangeID string,
	clientIP string,
	mti string,
	requestData []byte,
	activeConns int,
) {
	log.Info().
		Str("event", "request_received").
		Str("exchange_id", exchangeID).
		Str("client_ip", clientIP).
		Str("mti", mti).
		Str("request_hex", hex.EncodeToString(requestData)).
		Int("active_connections", activeConns).
		Msg("received message")
}

// LogResponse logs a sent response with structured fields.
func LogResponse(
	exchangeID string,
	clientIP string,
	mti string,
	responseMTI string,
	responseData []byte,
	responseCode string,
	activeConns int,
) {
	log.Info().
		Str("event", "response_sent").
		Str("exchange_id", exchangeID).
		Str("client_ip", clientIP).
		Str("mti", mti).
		Str("response_mti", responseMTI).
		Str("response_hex", hex.EncodeToString(responseData)).
		Str("response_code", responseCode).
		Int("active_connections", activeConns).
		Msg("sent response")
}

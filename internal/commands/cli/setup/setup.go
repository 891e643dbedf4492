// Package setup turns the loaded configuration into the components the
// commands run.
package setup

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	"github.com/andrei-cloud/go_cardsim/internal/client"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/logging"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

// InitLogger configures the global logger from cfg.
func InitLogger(cfg *config.Config) {
	level := strings.TrimSpace(strings.ToLower(cfg.Log.Level))
	format := strings.TrimSpace(strings.ToLower(cfg.Log.Format))

	logging.InitLogger(
		level == "debug",
		format == "human",
		logging.WithFile(logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}),
	)
}

// Protocol returns the codec and profile for the configured variant.
func Protocol(cfg *config.Config) (*iso8583.Codec, iso8583.Profile, error) {
	v, err := iso8583.ParseVariant(cfg.Protocol.Variant)
	if err != nil {
		return nil, iso8583.Profile{}, err
	}
	codec, err := iso8583.NewCodec(v)
	if err != nil {
		return nil, iso8583.Profile{}, err
	}
	profile, err := iso8583.ProfileFor(v)
	if err != nil {
		return nil, iso8583.Profile{}, err
	}

	return codec, profile, nil
}

// Store opens the configured card store.
func Store(cfg *config.Config) (cardstore.Store, error) {
	return cardstore.Open(cardstore.Config{
		Backend: cfg.Cards.Backend,
		Path:    cfg.Cards.Path,
	})
}

// Builder returns a message builder carrying the configured terminal identity.
func Builder(cfg *config.Config, profile iso8583.Profile, sec *security.Simulator) *builder.Builder {
	var opts []builder.Option
	if cfg.Terminal.ID != "" {
		opts = append(opts, builder.WithTerminal(cfg.Terminal.ID))
	}
	if cfg.Terminal.MerchantID != "" {
		opts = append(opts, builder.WithMerchant(cfg.Terminal.MerchantID))
	}
	if cfg.Terminal.AcquirerID != "" {
		opts = append(opts, builder.WithAcquirer(cfg.Terminal.AcquirerID))
	}

	return builder.New(profile, sec, opts...)
}

// Prefix returns the configured generation prefix or the variant default.
func Prefix(cfg *config.Config, v iso8583.Variant) string {
	if cfg.Cards.Prefix != "" {
		return cfg.Cards.Prefix
	}

	return client.DefaultPrefix(v)
}

// Balance parses the configured balance reported by inquiries.
func Balance(cfg *config.Config) (decimal.Decimal, error) {
	if strings.TrimSpace(cfg.Dispatcher.Balance) == "" {
		return dispatcher.DefaultBalance, nil
	}
	d, err := decimal.NewFromString(cfg.Dispatcher.Balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid dispatcher.balance %q: %w", cfg.Dispatcher.Balance, err)
	}

	return d, nil
}

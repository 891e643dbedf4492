package setup_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/message"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

func TestProtocol(t *testing.T) {
	cfg := &config.Config{}
	cfg.Protocol.Variant = "binary"
	codec, profile, err := setup.Protocol(cfg)
	require.NoError(t, err)
	assert.Equal(t, iso8583.VariantBinary, codec.Variant())
	assert.Equal(t, "1804", profile.NetworkMTI)

	cfg.Protocol.Variant = "ebcdic"
	_, _, err = setup.Protocol(cfg)
	require.ErrorIs(t, err, iso8583.ErrUnknownVariant)
}

func TestBuilderCarriesTerminal(t *testing.T) {
	cfg := &config.Config{}
	cfg.Terminal.ID = "TERM0042"
	cfg.Terminal.MerchantID = "SHOP00000000042"
	profile, err := iso8583.ProfileFor(iso8583.VariantASCII)
	require.NoError(t, err)

	b := setup.Builder(cfg, profile, security.New())
	m, err := b.Build(builder.Request{Category: builder.Purchase})
	require.NoError(t, err)
	assert.Equal(t, "TERM0042", m.GetString(message.TerminalID))
}

func TestPrefixAndBalance(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "541234", setup.Prefix(cfg, iso8583.VariantBinary))
	cfg.Cards.Prefix = "400000"
	assert.Equal(t, "400000", setup.Prefix(cfg, iso8583.VariantBinary))

	d, err := setup.Balance(cfg)
	require.NoError(t, err)
	assert.True(t, d.Equal(dispatcher.DefaultBalance))

	cfg.Dispatcher.Balance = "99.10"
	d, err = setup.Balance(cfg)
	require.NoError(t, err)
	assert.Equal(t, "99.10", d.StringFixed(2))

	cfg.Dispatcher.Balance = "lots"
	_, err = setup.Balance(cfg)
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cards.Backend = "csv"
	cfg.Cards.Path = filepath.Join(t.TempDir(), "cards.csv")
	st, err := setup.Store(cfg)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

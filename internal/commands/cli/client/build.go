package client

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build <category>",
		Short: "Build one request offline and print its fields",
		Long: `Build the request for a transaction category without connecting to an
endpoint, then print its fields and the encoded frame. Categories use the
builder names, for example echo, purchase, balance_inquiry or create_card.
Reversal categories need an original request and cannot be built here.`,
		Args: cobra.ExactArgs(1),
		RunE: runBuild,
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	category, err := builder.ParseCategory(args[0])
	if err != nil {
		return err
	}

	cfg := config.Get()
	codec, profile, err := setup.Protocol(cfg)
	if err != nil {
		return err
	}

	var selected *card.Card
	if st, err := setup.Store(cfg); err != nil {
		log.Warn().Err(err).Msg("card store unavailable, using demo card values")
	} else {
		defer st.Close()
		if selected, err = st.LoadSelectedOrFirst(cmd.Context()); err != nil {
			log.Warn().Err(err).Msg("no selected card, using demo card values")
		}
	}

	msg, err := setup.Builder(cfg, profile, security.New()).Build(builder.Request{
		Category: category,
		Card:     selected,
	})
	if err != nil {
		return err
	}

	raw, err := codec.Pack(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", category, err)
	}

	cmd.Printf("%s %s (%s)\n", category, msg.MTI(), codec.Variant())
	cmd.Println(msg.Trace())
	cmd.Printf("frame %X\n", raw)

	return nil
}

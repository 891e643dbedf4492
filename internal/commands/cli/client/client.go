// Package client provides the operator client commands.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	simclient "github.com/andrei-cloud/go_cardsim/internal/client"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/errorcodes"
	"github.com/andrei-cloud/go_cardsim/internal/message"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

// NewClientCommand creates the client command with subcommands.
func NewClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive operator client",
		Long: `Connect to an endpoint and send operations from an interactive menu.
Financial operations use the selected card from the card store, or demo
card values when the store is empty or unreadable.`,
		Example: `  # Open the menu against the configured endpoint
  go_cardsim client

  # Send one purchase and exit
  go_cardsim client send purchase --host 10.0.0.5 --port 8583`,
		RunE: runMenu,
	}

	cmd.PersistentFlags().String("host", "localhost", "Endpoint host")
	cmd.PersistentFlags().Int("port", 8583, "Endpoint port")
	cmd.PersistentFlags().Duration("timeout", 30*time.Second, "Round trip timeout")
	config.Annotate(cmd.PersistentFlags(), "host", "client.host")
	config.Annotate(cmd.PersistentFlags(), "port", "client.port")

	send := &cobra.Command{
		Use:   "send <operation>",
		Short: "Send one operation and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runSend,
	}

	ops := &cobra.Command{
		Use:   "ops",
		Short: "List available operations",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, op := range simclient.Operations {
				cmd.Printf("%-20s %s\n", op.Name, op.Label)
			}
		},
	}

	cmd.AddCommand(send, ops, newBuildCommand())

	return cmd
}

// runtime bundles what an operator session needs.
type runtime struct {
	runner *simclient.Runner
	client *simclient.Client
	store  cardstore.Store
}

func (rt *runtime) Close() {
	if err := rt.client.Close(); err != nil {
		log.Debug().Err(err).Msg("client close")
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg := config.Get()
	timeout, _ := cmd.Flags().GetDuration("timeout")

	codec, profile, err := setup.Protocol(cfg)
	if err != nil {
		return nil, err
	}

	sec := security.New()
	cl := simclient.New(cfg.ClientAddress(), codec,
		simclient.WithPoolSize(cfg.Client.PoolSize),
		simclient.WithTimeout(timeout),
	)

	rt := &runtime{client: cl}
	st, err := setup.Store(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("card store unavailable, using demo card values")
	} else {
		rt.store = st
	}

	rt.runner = &simclient.Runner{
		Transport: cl,
		Builder:   setup.Builder(cfg, profile, sec),
		Store:     rt.store,
		Generator: card.NewGenerator(sec),
		Session:   cl.Session(),
		Prefix:    setup.Prefix(cfg, profile.Variant),
	}

	return rt, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	op, err := simclient.Lookup(args[0])
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, err := op.Run(cmd.Context(), rt.runner)
	if err != nil {
		return err
	}
	cmd.Print(describe(op, out))

	return nil
}

func runMenu(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p := tea.NewProgram(newMenuModel(ctx, rt.runner, string(rt.client.Variant()), config.Get().ClientAddress()))
	_, err = p.Run()

	return err
}

// describe renders an operation outcome as text.
func describe(op simclient.Operation, out *simclient.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", op.Label)
	for _, ex := range out.Exchanges {
		rc := errorcodes.Lookup(ex.Response.GetString(message.ResponseCode))
		fmt.Fprintf(&b, "  %s -> %s  %s\n", ex.Request.MTI(), ex.Response.MTI(), rc.Error())
	}
	if out.Card != nil {
		fmt.Fprintf(&b, "  card %s (%s)\n", card.MaskPAN(out.Card.PAN), out.Card.Status)
	}

	return b.String()
}

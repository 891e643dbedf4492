// Package cards provides commands that manage the local card file.
package cards

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/card"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/iso8583"
	"github.com/andrei-cloud/go_cardsim/internal/security"
)

// NewCardsCommand creates the cards command with subcommands.
func NewCardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage the card store",
		Long: `List, generate, select and block cards in the configured card store.
Generated cards get a Luhn-valid PAN, a random PIN and the PVV and CVV
the endpoint will verify.`,
		Example: `  # Generate three cards with the variant's default prefix
  go_cardsim cards generate --count 3

  # Make a card the one used by client operations
  go_cardsim cards select 4532110000000006`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored cards",
		RunE:  runList,
	}
	list.Flags().Bool("reveal", false, "Show full PANs")

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate cards and append them to the store",
		RunE:  runGenerate,
	}
	generate.Flags().String("prefix", "", "Card prefix (defaults to cards.prefix or the variant default)")
	generate.Flags().Int("length", 16, "PAN length (13-19)")
	generate.Flags().Int("count", 1, "Number of cards to generate")

	sel := &cobra.Command{
		Use:   "select <pan>",
		Short: "Select the card used by client operations",
		Args:  cobra.ExactArgs(1),
		RunE:  runSelect,
	}

	status := &cobra.Command{
		Use:   "status <pan> <ACTIVE|BLOCKED>",
		Short: "Set the status of a card",
		Args:  cobra.ExactArgs(2),
		RunE:  runStatus,
	}

	cmd.AddCommand(list, generate, sel, status)

	return cmd
}

func openStore() (cardstore.Store, error) {
	st, err := setup.Store(config.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to open card store: %w", err)
	}

	return st, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	reveal, _ := cmd.Flags().GetBool("reveal")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cards, err := st.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		cmd.Println("No cards in store.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tPAN\tEXPIRY\tSTATUS\tSCHEME\tPRODUCT\tLIMIT_TXN\tLIMIT_DAILY")
	for _, c := range cards {
		pan := card.MaskPAN(c.PAN)
		if reveal {
			pan = c.PAN
		}
		marker := ""
		if c.Selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, pan, c.Expiry, c.Status, c.Scheme, c.Product,
			c.PerTxnLimit.StringFixed(2), c.DailyLimit.StringFixed(2))
	}

	return w.Flush()
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	length, _ := cmd.Flags().GetInt("length")
	count, _ := cmd.Flags().GetInt("count")

	cfg := config.Get()
	if prefix == "" {
		v, err := iso8583.ParseVariant(cfg.Protocol.Variant)
		if err != nil {
			return err
		}
		prefix = setup.Prefix(cfg, v)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	gen := card.NewGenerator(security.New())
	for i := 0; i < count; i++ {
		c, err := gen.Generate(prefix, length)
		if err != nil {
			return err
		}
		if err := st.AppendGenerated(cmd.Context(), c); err != nil {
			return err
		}
		cmd.Printf("Generated %s (PIN %s, PVV %s, CVV %s)\n", c.PAN, c.PIN, c.PVV, c.CVV)
	}

	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Select(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Selected %s\n", card.MaskPAN(args[0]))

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := card.ParseStatus(args[1])

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.UpdateStatus(cmd.Context(), args[0], status); err != nil {
		return err
	}
	cmd.Printf("%s is now %s\n", card.MaskPAN(args[0]), status)

	return nil
}

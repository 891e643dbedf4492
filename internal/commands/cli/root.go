// Package cli provides the CLI command structure for go_cardsim.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
)

var cfgFile string

// NewRootCommand creates and returns the root command with all subcommands.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "go_cardsim",
		Short: "Card payment network endpoint simulator",
		Long: `A card network endpoint simulator speaking two ISO 8583 style variants.
It runs either as the endpoint that answers authorizations, reversals,
network management and card file actions, or as an operator client that
builds and sends them.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Initialize configuration before running any command.
			var err error
			if cfgFile != "" {
				err = config.InitializeWith(cfgFile)
			} else {
				err = config.Initialize()
			}
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if err := config.BindFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to apply flags: %w", err)
			}

			setup.InitLogger(config.Get())

			return nil
		},
	}

	// Add persistent flags that affect all commands.
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_cardsim/config.yaml)")

	// Add global flags that can override config file settings.
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "logging format (human, json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this rotated file")
	rootCmd.PersistentFlags().String("variant", "ascii", "protocol variant (ascii, binary)")

	config.Annotate(rootCmd.PersistentFlags(), "log-level", "log.level")
	config.Annotate(rootCmd.PersistentFlags(), "log-format", "log.format")
	config.Annotate(rootCmd.PersistentFlags(), "log-file", "log.file")
	config.Annotate(rootCmd.PersistentFlags(), "variant", "protocol.variant")

	// Register all commands.
	if err := RegisterCommands(rootCmd); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return rootCmd, nil
}

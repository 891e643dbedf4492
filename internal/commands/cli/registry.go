// Package cli provides centralized command registration.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/cards"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/client"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/security"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/server"
)

// RegisterCommands registers all root commands.
func RegisterCommands(root *cobra.Command) error {
	root.AddCommand(server.NewServeCommand())
	root.AddCommand(client.NewClientCommand())
	root.AddCommand(cards.NewCardsCommand())

	securityCmd, err := security.NewSecurityCommand()
	if err != nil {
		return fmt.Errorf("failed to create security command: %w", err)
	}
	root.AddCommand(securityCmd)

	return nil
}

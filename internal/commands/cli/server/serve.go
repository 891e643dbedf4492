// Package server provides the serve command that runs the endpoint.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/admin"
	"github.com/andrei-cloud/go_cardsim/internal/cardstore"
	"github.com/andrei-cloud/go_cardsim/internal/commands/cli/setup"
	"github.com/andrei-cloud/go_cardsim/internal/config"
	"github.com/andrei-cloud/go_cardsim/internal/dispatcher"
	"github.com/andrei-cloud/go_cardsim/internal/security"
	"github.com/andrei-cloud/go_cardsim/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the network endpoint",
		Long: `Start the card network endpoint. It accepts length-framed requests in the
configured protocol variant, validates PIN and CVV, and answers every
recognised request with a response code.`,
		Example: `  # Serve the ascii variant on the default port
  go_cardsim serve

  # Serve the binary variant with the admin listener
  go_cardsim serve --variant binary --port 9583 --admin`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 8583, "Server port")
	cmd.Flags().Bool("admin", false, "Enable the admin HTTP listener")
	cmd.Flags().Int("admin-port", 8080, "Admin HTTP port")

	// Bind serve command flags to configuration keys.
	config.Annotate(cmd.Flags(), "host", "server.host")
	config.Annotate(cmd.Flags(), "port", "server.port")
	config.Annotate(cmd.Flags(), "admin", "admin.enabled")
	config.Annotate(cmd.Flags(), "admin-port", "admin.port")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	codec, profile, err := setup.Protocol(cfg)
	if err != nil {
		return err
	}
	balance, err := setup.Balance(cfg)
	if err != nil {
		return err
	}

	d := dispatcher.New(profile, security.New(), dispatcher.WithBalance(balance))

	srv, err := server.NewServer(cfg.Address(), codec, d)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %v", err)
	}

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	var adm *admin.Admin
	if cfg.Admin.Enabled {
		var cards cardstore.Store
		if st, err := setup.Store(cfg); err != nil {
			log.Warn().Err(err).Msg("card store unavailable, admin card listing disabled")
		} else {
			cards = st
			defer st.Close()
		}

		adm = admin.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Admin.Port), srv, storeOrNil(cards))
		go func() {
			if err := adm.Start(); err != nil {
				errChan <- fmt.Errorf("admin listener failed: %w", err)
			}
		}()
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopChan)

	select {
	case <-stopChan:
		log.Info().Msg("shutting down server...")
	case err := <-errChan:
		log.Error().Err(err).Msg("listener stopped")
		stopAll(srv, adm)

		return err
	case <-cmd.Context().Done():
	}

	stopAll(srv, adm)

	return nil
}

// storeOrNil keeps a nil Store from becoming a non-nil interface value.
func storeOrNil(st cardstore.Store) admin.CardSource {
	if st == nil {
		return nil
	}

	return st
}

func stopAll(srv *server.Server, adm *admin.Admin) {
	if adm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adm.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("error during admin shutdown")
		}
	}
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wardroom-app/wardroom/internal/app"
	"github.com/wardroom-app/wardroom/internal/config"
	"github.com/wardroom-app/wardroom/internal/log"
	"github.com/wardroom-app/wardroom/internal/store"
	"github.com/wardroom-app/wardroom/internal/store/sqlite"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "wardroom",
		Short:         "Wardroom admin dashboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd(), promoteCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLogger := log.New("info")

			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Addr: addr})
			if cfg.JWTSecret == "" {
				return errors.New("jwt_secret is not set; configure it in the config file or via WARDROOM_JWT_SECRET")
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override")
	return cmd
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant superadmin to an existing identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(nil, configPath)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			ident, err := st.GetIdentityByUsername(ctx, args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no identity named %q", args[0])
				}
				return err
			}

			if err := st.SetRole(ctx, ident.ID, store.RoleSuperadmin); err != nil {
				return err
			}
			if err := st.SetApproved(ctx, ident.ID, true); err != nil {
				return err
			}

			fmt.Printf("%s is now an approved superadmin\n", ident.Username)
			return nil
		},
	}
}

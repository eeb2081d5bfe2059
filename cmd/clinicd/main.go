// Command clinicd runs the DentalCare visit scheduling API and its helpers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentalcare/clinic-visits/internal/app"
	"github.com/dentalcare/clinic-visits/internal/pkg/config"
	"github.com/dentalcare/clinic-visits/pkg/logger"
)

// @title                      DentalCare Clinic Visits API
// @version                    1.0
// @description                Clinic visit scheduling backend: users, clinics, patients and conflict-free visits.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicd",
		Short:        "DentalCare clinic visit scheduling service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		runCmd("serve", "Start the HTTP API", serve),
		runCmd("worker", "Deliver mail notifications from RabbitMQ", app.RunWorker),
		runCmd("migrate", "Create the store schema and indexes", app.Migrate),
		runCmd("seed", "Load demo users and visits", app.SeedStore),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, cfg *config.Config, log zerolog.Logger) error

// runCmd loads configuration, initialises the logger and runs fn until
// SIGINT or SIGTERM.
func runCmd(use, short string, fn runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			log := logger.Init(logger.Options{
				Level:   cfg.LogLevel,
				Pretty:  cfg.IsDevelopment(),
				Service: "clinicd",
			})
			log.Info().Str("command", use).Str("env", cfg.Env).Msg("starting")

			return fn(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

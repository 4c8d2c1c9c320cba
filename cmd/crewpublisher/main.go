package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"CrewPublisher/internal/app"
	"CrewPublisher/internal/config"
	"CrewPublisher/internal/logging"
	"CrewPublisher/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "crewpublisher",
		Short:         "Generate blog posts with an agent crew and publish them to an Outstatic site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (defaults to $CREW_PUBLISHER_CONFIG)")

	root.AddCommand(newServeCommand(&configPath), newPublishCommand(&configPath))
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*configPath)
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func newPublishCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the existing report without running the crew",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*configPath)
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.NewPublishing(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := usecase.WithRunID(cmd.Context(), uuid.NewString())
			result, err := application.Publish(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s)\n", result.FileName, result.Entry.Path)
			return nil
		},
	}
}

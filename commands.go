package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/hbomb79/Curator/internal"
	"github.com/hbomb79/Curator/internal/event"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configPath string
	verbose    bool
}

func (c *commandContext) load() (*internal.CuratorConfig, error) {
	if c.verbose {
		logger.SetMinLoggingLevel(logger.DEBUG.Level())
	}

	return internal.LoadConfig(c.configPath)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	rootCmd := &cobra.Command{
		Use:           "curator",
		Short:         "Mirror media server libraries in to a relational catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (environment only if omitted)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newReconcileCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		libraryID string
		kind      string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a single library with the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inventory.Kind(kind).Valid() {
				return fmt.Errorf("--kind must be one of 'movie' or 'music', got %q", kind)
			}

			config, err := ctx.load()
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			curator := internal.New(*config)
			defer curator.Close()
			if err := curator.Connect(signalCtx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			curator.Events().RegisterHandlerFunction(event.BATCH_COMPLETE, func(_ event.Event, payload event.Payload) {
				if batch, ok := payload.(event.BatchPayload); ok {
					fmt.Fprintf(out, "batch %d: %s items (%s created, %s skipped, %s failed)\n",
						batch.Batch, humanize.Comma(int64(batch.Processed)), humanize.Comma(int64(batch.Created)),
						humanize.Comma(int64(batch.Skipped)), humanize.Comma(int64(batch.Failed)))
				}
			})

			report, err := curator.Reconcile(signalCtx, reconcile.RunRequest{
				LibraryID: libraryID,
				Kind:      inventory.Kind(kind),
				BatchSize: batchSize,
			})
			if report != nil {
				fmt.Fprintln(out, renderReport(report))
			}

			return err
		},
	}

	cmd.Flags().StringVar(&libraryID, "library", "", "Identifier of the library on the media server")
	cmd.Flags().StringVar(&kind, "kind", string(inventory.KindMovie), "Library kind (movie or music)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Items reconciled per batch (defaults to reconcile.batch_size)")
	_ = cmd.MarkFlagRequired("library")

	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST gateway and run scheduled reconciliations",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.load()
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			curator := internal.New(*config)
			defer curator.Close()
			if err := curator.Connect(signalCtx); err != nil {
				return err
			}

			return curator.Serve(signalCtx)
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending catalog database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.load()
			if err != nil {
				return err
			}

			return internal.New(*config).Migrate(context.Background())
		},
	}
}

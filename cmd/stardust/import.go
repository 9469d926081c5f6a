package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raykavin/stardust/importer"
	"github.com/raykavin/stardust/storage"
)

func buildImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Backfill the candle archive from the trade history",
		RunE:  runImport,
	}
	cmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "Show a progress bar")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, log, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := storage.StateFromFile(cfg.Storage.StatePath)
	if err != nil {
		return err
	}
	defer state.Close()

	ex := newExchange(cfg, log)

	opts := []importer.Option{importer.WithFetchLimit(cfg.Fetcher.FetchLimit)}
	if showProgress {
		opts = append(opts, importer.WithProgressBar())
	}
	imp := importer.New(ex, store, state, log, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := imp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

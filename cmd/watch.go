package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nick-seward/vibe-dj-sub000/core/analysis"
	"github.com/nick-seward/vibe-dj-sub000/core/indexer"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/core/watch"
	"github.com/nick-seward/vibe-dj-sub000/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [library-path]",
	Short: "Watch the library directory and re-index on changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cfg.LibraryPath
		if len(args) == 1 {
			root = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		repo, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		gateway := analysis.NewGateway(
			analysis.NewCommandExtractor(cfg.AnalyzerCommand, cfg.AnalyzerArgs...),
			time.Duration(cfg.ProcessingTimeout)*time.Second,
		)
		index := similarity.LoadOrEmpty(cfg.IndexPath)
		pipeline := indexer.New(cfg, repo, gateway, analysis.PathMetadataReader{}, index)

		run := func(runCtx context.Context) error {
			summary, err := pipeline.Run(runCtx, root)
			if err != nil {
				return err
			}
			logger.Info("watch run finished",
				logger.Int("processed", summary.Processed),
				logger.Int("skipped", summary.Skipped),
				logger.Int("failed", summary.Failed))
			return nil
		}

		// Index once up front so the watcher starts from a complete state.
		if err := run(ctx); err != nil {
			return err
		}

		debounce := time.Duration(cfg.WatchDebounceSeconds) * time.Second
		return watch.New(root, debounce, run).Watch(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nick-seward/vibe-dj-sub000/core/analysis"
	"github.com/nick-seward/vibe-dj-sub000/core/indexer"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
)

var pruneDeleted bool

var indexCmd = &cobra.Command{
	Use:   "index [library-path]",
	Short: "Scan the library and extract features for new or changed tracks",
	Long: `Runs the resumable indexing pipeline: scans the library directory,
persists metadata for new or modified files, extracts feature vectors with a
bounded worker pool, and refreshes the similarity index. Interrupting the run
is safe; the next invocation picks up exactly the remaining work.`,
	Args: cobra.MaximumNArgs(1),
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

		summary, err := pipeline.Run(ctx, root)
		if err != nil {
			return err
		}

		fmt.Printf("Indexing summary: %d processed, %d skipped, %d failed\n",
			summary.Processed, summary.Skipped, summary.Failed)

		if pruneDeleted && ctx.Err() == nil {
			removed, err := pipeline.Prune(ctx, root)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d tracks whose files no longer exist\n", removed)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&pruneDeleted, "prune", false,
		"remove tracks whose files no longer exist under the library root")
	rootCmd.AddCommand(indexCmd)
}

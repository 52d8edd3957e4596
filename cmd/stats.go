package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library completeness and index size",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := repo.CompletenessStats()
		if err != nil {
			return err
		}
		index := similarity.LoadOrEmpty(cfg.IndexPath)

		fmt.Printf("Tracks:        %d\n", stats.Total)
		fmt.Printf("With features: %d\n", stats.WithFeatures)
		fmt.Printf("Indexed:       %d (dimension %d)\n", index.Size(), index.Dimension())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

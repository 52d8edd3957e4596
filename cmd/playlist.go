package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nick-seward/vibe-dj-sub000/cache"
	"github.com/nick-seward/vibe-dj-sub000/core/playlist"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/logger"
	"github.com/nick-seward/vibe-dj-sub000/repository"
)

var (
	playlistSeeds  []string
	playlistLength int
	playlistJitter float64
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Generate a playlist from 1-3 seed tracks",
	Long: `Generates an ordered playlist similar to the given seeds. Seeds are
track ids or file paths (repeat --seed up to three times). The result is
ordered by tempo; --jitter 0 gives a strictly monotonic tempo progression.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(playlistSeeds) == 0 {
			return fmt.Errorf("at least one --seed is required")
		}

		repo, cleanup, err := openStore()
		if err != nil {
			return err
		}
		defer cleanup()

		if cache.ConnectRedis(cfg) {
			defer func() { _ = cache.CloseRedis() }()
		}

		seedIDs, err := resolveSeeds(repo, playlistSeeds)
		if err != nil {
			return err
		}

		jitter := playlistJitter
		if jitter < 0 {
			jitter = cfg.BPMJitterPercent
		}

		index := similarity.LoadOrEmpty(cfg.IndexPath)
		gen := playlist.New(cfg, repo, index)

		pl, err := gen.Generate(seedIDs, playlistLength, jitter)
		if err != nil {
			return err
		}

		if err := cache.StoreGenerated(cmd.Context(), pl); err != nil {
			logger.Warn("failed to cache playlist", logger.ErrorField(err))
		}

		fmt.Printf("Playlist %s (%d of %d requested tracks):\n", pl.ID, pl.Len(), playlistLength)
		for i, t := range pl.Tracks {
			fmt.Printf("%3d. %s [%s]\n", i+1, t.String(), t.FilePath)
		}
		return nil
	},
}

// resolveSeeds turns --seed values (numeric track ids or file paths) into
// track ids.
func resolveSeeds(repo repository.TrackRepository, seeds []string) ([]int64, error) {
	ids := make([]int64, 0, len(seeds))
	for _, s := range seeds {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		track, err := repo.TrackByPath(s)
		if err != nil {
			return nil, err
		}
		if track == nil {
			return nil, fmt.Errorf("no track found for seed %q", s)
		}
		ids = append(ids, track.ID)
	}
	return ids, nil
}

func init() {
	playlistCmd.Flags().StringArrayVar(&playlistSeeds, "seed", nil, "seed track id or file path (repeatable, 1-3)")
	playlistCmd.Flags().IntVar(&playlistLength, "length", 20, "target playlist length")
	playlistCmd.Flags().Float64Var(&playlistJitter, "jitter", -1, "tempo sort jitter percent (default from config)")
	rootCmd.AddCommand(playlistCmd)
}

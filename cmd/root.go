package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/db"
	"github.com/nick-seward/vibe-dj-sub000/logger"
	"github.com/nick-seward/vibe-dj-sub000/repository"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vibedj",
	Short: "vibe-dj indexes a music library and generates similarity playlists.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to the database, migrates the schema, and returns the
// track repository plus a cleanup func.
func openStore() (repository.TrackRepository, func(), error) {
	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewTrackRepository(gdb), func() { _ = db.Close() }, nil
}

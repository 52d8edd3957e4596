package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nick-seward/vibe-dj-sub000/model"
)

const (
	recentPlaylistsKey = "vibedj:playlists:recent"
	recentPlaylistsTTL = 30 * 24 * time.Hour
	recentPlaylistsMax = 50
)

// StoreGenerated records a generated playlist in the recent-playlists set,
// scored by generation time. A no-op when redis is disabled.
func StoreGenerated(ctx context.Context, pl *model.Playlist) error {
	if RedisClient == nil {
		return nil
	}

	payload, err := json.Marshal(pl)
	if err != nil {
		return fmt.Errorf("failed to marshal playlist %s: %w", pl.ID, err)
	}

	pipe := RedisClient.TxPipeline()
	pipe.ZAdd(ctx, recentPlaylistsKey, redis.Z{
		Score:  float64(pl.GeneratedAt.UnixNano()),
		Member: payload,
	})
	// Keep only the newest entries.
	pipe.ZRemRangeByRank(ctx, recentPlaylistsKey, 0, int64(-recentPlaylistsMax-1))
	pipe.Expire(ctx, recentPlaylistsKey, recentPlaylistsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache playlist %s: %w", pl.ID, err)
	}
	return nil
}

// RecentPlaylists returns up to n cached playlists, newest first. Returns nil
// when redis is disabled.
func RecentPlaylists(ctx context.Context, n int) ([]model.Playlist, error) {
	if RedisClient == nil || n <= 0 {
		return nil, nil
	}

	members, err := RedisClient.ZRevRange(ctx, recentPlaylistsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent playlists: %w", err)
	}

	playlists := make([]model.Playlist, 0, len(members))
	for _, m := range members {
		var pl model.Playlist
		if err := json.Unmarshal([]byte(m), &pl); err != nil {
			continue // stale payload from an older format
		}
		playlists = append(playlists, pl)
	}
	return playlists, nil
}

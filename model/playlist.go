package model

import "time"

// Playlist is an ordered selection of tracks generated from seed tracks.
// Playlists are request-scoped; they are only persisted opportunistically in
// the recent-playlist cache.
type Playlist struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	SeedIDs     []int64   `json:"seedIds"`
	Tracks      []Track   `json:"tracks"`
}

// Len returns the number of tracks in the playlist.
func (p Playlist) Len() int { return len(p.Tracks) }

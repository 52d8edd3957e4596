package playlist

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/model"
	"github.com/nick-seward/vibe-dj-sub000/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		CandidateMultiplier: 4,
		QueryNoiseScale:     0, // deterministic queries in tests
		BPMJitterPercent:    5,
	}
}

// newLibrary seeds a repo and index with n analyzed tracks. Vectors are laid
// out on a line so neighbor order is predictable; tempos are deliberately
// not correlated with ids.
func newLibrary(t *testing.T, n int) (repository.TrackRepository, *similarity.Index, []int64) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&model.Track{}, &model.Feature{}))
	repo := repository.NewTrackRepository(gdb)

	ids := make([]int64, n)
	records := make([]similarity.Record, n)
	for i := 0; i < n; i++ {
		id, err := repo.UpsertTrack(&model.Track{
			FilePath:    fmt.Sprintf("/m/track-%02d.mp3", i),
			Title:       fmt.Sprintf("Track %02d", i),
			Fingerprint: "fp",
		})
		require.NoError(t, err)

		vec := []float32{float32(i), float32(i) * 0.5}
		tempo := 80 + float64((i*37)%80)
		require.NoError(t, repo.SaveFeatures(id, vec, tempo))

		ids[i] = id
		records[i] = similarity.Record{TrackID: id, Vector: vec}
	}

	index := similarity.NewIndex()
	require.NoError(t, index.Rebuild(records))
	return repo, index, ids
}

func TestGenerateExcludesSeeds(t *testing.T) {
	repo, index, ids := newLibrary(t, 30)
	gen := NewSeeded(testConfig(), repo, index, 1)

	seeds := []int64{ids[10], ids[11]}
	for run := 0; run < 5; run++ {
		pl, err := gen.Generate(seeds, 8, 0)
		require.NoError(t, err)
		require.NotEmpty(t, pl.Tracks)
		for _, track := range pl.Tracks {
			assert.NotContains(t, seeds, track.ID, "seed tracks never appear in the playlist")
		}
	}
}

func TestGenerateHasNoDuplicates(t *testing.T) {
	repo, index, ids := newLibrary(t, 30)
	gen := NewSeeded(testConfig(), repo, index, 7)

	pl, err := gen.Generate([]int64{ids[5]}, 12, 5)
	require.NoError(t, err)

	seen := map[int64]struct{}{}
	for _, track := range pl.Tracks {
		_, dup := seen[track.ID]
		assert.False(t, dup, "track %d appears twice", track.ID)
		seen[track.ID] = struct{}{}
	}
}

func TestGenerateZeroJitterIsMonotonicByTempo(t *testing.T) {
	repo, index, ids := newLibrary(t, 40)
	gen := NewSeeded(testConfig(), repo, index, 42)

	pl, err := gen.Generate([]int64{ids[20]}, 10, 0)
	require.NoError(t, err)
	require.Greater(t, pl.Len(), 1)

	features, err := repo.FeaturesByTrackIDs(trackIDs(pl.Tracks))
	require.NoError(t, err)

	prev := -1.0
	for _, track := range pl.Tracks {
		tempo := features[track.ID].Tempo
		assert.GreaterOrEqual(t, tempo, prev, "zero jitter must sort strictly by tempo")
		prev = tempo
	}
}

func TestGenerateJitterKeepsSelectionStableButMayReorder(t *testing.T) {
	repo, index, ids := newLibrary(t, 40)

	noJitter := NewSeeded(testConfig(), repo, index, 9)
	withJitter := NewSeeded(testConfig(), repo, index, 9)

	plain, err := noJitter.Generate([]int64{ids[7]}, 10, 0)
	require.NoError(t, err)
	jittered, err := withJitter.Generate([]int64{ids[7]}, 10, 25)
	require.NoError(t, err)

	assert.ElementsMatch(t, trackIDs(plain.Tracks), trackIDs(jittered.Tracks),
		"jitter affects ordering only, not selection")
}

func TestGenerateShortLibraryReturnsShortPlaylist(t *testing.T) {
	repo, index, ids := newLibrary(t, 10)
	gen := NewSeeded(testConfig(), repo, index, 3)

	seeds := []int64{ids[0], ids[1], ids[2]}
	pl, err := gen.Generate(seeds, 50, 5)
	require.NoError(t, err, "a small library is not an error")
	assert.LessOrEqual(t, pl.Len(), 7, "10 tracks minus 3 seeds")
	assert.Equal(t, 7, pl.Len())
}

func TestGenerateWidensOnceBeforeSettling(t *testing.T) {
	repo, index, ids := newLibrary(t, 25)
	cfg := testConfig()
	cfg.CandidateMultiplier = 1 // first fetch is too small once seeds are filtered
	gen := NewSeeded(cfg, repo, index, 11)

	seeds := []int64{ids[0], ids[1], ids[2]}
	pl, err := gen.Generate(seeds, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, pl.Len(), "the doubled fetch fills the playlist")
}

func TestGenerateInsufficientSeeds(t *testing.T) {
	repo, index, ids := newLibrary(t, 10)
	gen := NewSeeded(testConfig(), repo, index, 1)

	_, err := gen.Generate(nil, 10, 0)
	assert.ErrorIs(t, err, ErrInsufficientSeeds)

	_, err = gen.Generate([]int64{ids[0], ids[1], ids[2], ids[3]}, 10, 0)
	assert.ErrorIs(t, err, ErrInsufficientSeeds)

	// A track that was never analyzed cannot seed a playlist.
	unanalyzed, err2 := repo.UpsertTrack(&model.Track{FilePath: "/m/raw.mp3", Fingerprint: "fp"})
	require.NoError(t, err2)
	_, err = gen.Generate([]int64{unanalyzed}, 10, 0)
	assert.ErrorIs(t, err, ErrInsufficientSeeds)
}

func TestGenerateEmptyIndex(t *testing.T) {
	repo, _, ids := newLibrary(t, 5)
	gen := NewSeeded(testConfig(), repo, similarity.NewIndex(), 1)

	_, err := gen.Generate([]int64{ids[0]}, 10, 0)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestGenerateQueryNoiseVariesSelection(t *testing.T) {
	repo, index, ids := newLibrary(t, 40)
	cfg := testConfig()
	cfg.QueryNoiseScale = 0.5

	a := NewSeeded(cfg, repo, index, 100)
	b := NewSeeded(cfg, repo, index, 200)

	plA, err := a.Generate([]int64{ids[20]}, 10, 0)
	require.NoError(t, err)
	plB, err := b.Generate([]int64{ids[20]}, 10, 0)
	require.NoError(t, err)

	assert.NotEqual(t, trackIDs(plA.Tracks), trackIDs(plB.Tracks),
		"noise perturbation makes regeneration produce a related but different playlist")
}

func trackIDs(tracks []model.Track) []int64 {
	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

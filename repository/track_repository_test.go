package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nick-seward/vibe-dj-sub000/model"
)

func newTestRepo(t *testing.T) TrackRepository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&model.Track{}, &model.Feature{}))
	return NewTrackRepository(gdb)
}

func addTrack(t *testing.T, repo TrackRepository, path, fingerprint string) int64 {
	t.Helper()
	id, err := repo.UpsertTrack(&model.Track{
		FilePath:    path,
		Title:       path,
		Fingerprint: fingerprint,
	})
	require.NoError(t, err)
	return id
}

func TestUpsertTrackIsKeyedOnPath(t *testing.T) {
	repo := newTestRepo(t)

	id1 := addTrack(t, repo, "/music/a.mp3", "fp-1")
	id2 := addTrack(t, repo, "/music/a.mp3", "fp-1")
	assert.Equal(t, id1, id2)

	stats, err := repo.CompletenessStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestChangedFingerprintMakesFeaturesStale(t *testing.T) {
	repo := newTestRepo(t)

	id := addTrack(t, repo, "/music/a.mp3", "fp-1")
	require.NoError(t, repo.SaveFeatures(id, []float32{1, 2, 3}, 120))

	missing, err := repo.TracksMissingFeatures(10)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Same path, new fingerprint: the track updates, the feature record is
	// left in place but becomes stale.
	id2 := addTrack(t, repo, "/music/a.mp3", "fp-2")
	assert.Equal(t, id, id2)

	missing, err = repo.TracksMissingFeatures(10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, id, missing[0].ID)

	features, err := repo.FeaturesByTrackIDs([]int64{id})
	require.NoError(t, err)
	assert.Contains(t, features, id, "stale features stay until re-extraction")

	stats, err := repo.CompletenessStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(0), stats.WithFeatures, "stale features do not count as complete")
}

func TestSaveFeaturesIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	id := addTrack(t, repo, "/music/a.mp3", "fp-1")
	require.NoError(t, repo.SaveFeatures(id, []float32{1, 2, 3}, 120))
	require.NoError(t, repo.SaveFeatures(id, []float32{4, 5, 6}, 98))

	features, err := repo.FeaturesByTrackIDs([]int64{id})
	require.NoError(t, err)
	require.Contains(t, features, id)

	vec, err := features[id].FeatureVector()
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, vec)
	assert.Equal(t, 98.0, features[id].Tempo)
}

func TestTracksMissingFeaturesOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)

	var ids []int64
	for _, p := range []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"} {
		ids = append(ids, addTrack(t, repo, p, "fp"))
	}
	require.NoError(t, repo.SaveFeatures(ids[1], []float32{1}, 100))

	missing, err := repo.TracksMissingFeatures(1)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, ids[0], missing[0].ID, "stable ascending id order")

	missing, err = repo.TracksMissingFeatures(10)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, []int64{ids[0], ids[2]}, []int64{missing[0].ID, missing[1].ID})
}

func TestFeatureRecordsPaged(t *testing.T) {
	repo := newTestRepo(t)

	for i, p := range []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"} {
		id := addTrack(t, repo, p, "fp")
		require.NoError(t, repo.SaveFeatures(id, []float32{float32(i)}, 100))
	}

	page1, err := repo.FeatureRecords(0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := repo.FeatureRecords(2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	assert.Less(t, page1[0].TrackID, page1[1].TrackID)
	assert.Less(t, page1[1].TrackID, page2[0].TrackID)
}

func TestRemoveMissing(t *testing.T) {
	repo := newTestRepo(t)

	keep := addTrack(t, repo, "/m/keep.mp3", "fp")
	gone := addTrack(t, repo, "/m/gone.mp3", "fp")
	require.NoError(t, repo.SaveFeatures(gone, []float32{1}, 100))

	removed, err := repo.RemoveMissing(map[string]struct{}{"/m/keep.mp3": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := repo.CompletenessStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	features, err := repo.FeaturesByTrackIDs([]int64{keep, gone})
	require.NoError(t, err)
	assert.NotContains(t, features, gone, "features go with the track")
}

func TestFilePathFingerprints(t *testing.T) {
	repo := newTestRepo(t)
	addTrack(t, repo, "/m/a.mp3", "fp-a")
	addTrack(t, repo, "/m/b.mp3", "fp-b")

	fps, err := repo.FilePathFingerprints()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/m/a.mp3": "fp-a", "/m/b.mp3": "fp-b"}, fps)
}

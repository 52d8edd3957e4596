package similarity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOrdersByDistanceThenID(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{
		{TrackID: 30, Vector: []float32{0, 1}}, // distance 1 from origin
		{TrackID: 10, Vector: []float32{1, 0}}, // distance 1 from origin, lower id
		{TrackID: 20, Vector: []float32{0, 3}}, // distance 9
	}))

	matches, err := ix.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Ties at identical distance break by ascending track id.
	assert.Equal(t, int64(10), matches[0].TrackID)
	assert.Equal(t, int64(30), matches[1].TrackID)
	assert.Equal(t, int64(20), matches[2].TrackID)
	assert.InDelta(t, 1.0, float64(matches[0].Distance), 1e-5)
	assert.InDelta(t, 9.0, float64(matches[2].Distance), 1e-5)
}

func TestSearchCapsKAtSize(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{{TrackID: 1, Vector: []float32{1}}}))

	matches, err := ix.Search([]float32{0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSearchEmptyIndex(t *testing.T) {
	matches, err := NewIndex().Search([]float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{{TrackID: 1, Vector: []float32{1, 2}}}))

	_, err := ix.Search([]float32{1}, 1)
	var ierr *IndexError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, DimensionMismatch, ierr.Kind)
}

func TestExtendAppendsWithoutTouchingPositions(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{{TrackID: 1, Vector: []float32{0, 0}}}))
	require.NoError(t, ix.Extend([]Record{{TrackID: 2, Vector: []float32{5, 5}}}))

	assert.Equal(t, 2, ix.Size())
	assert.True(t, ix.Contains(1))
	assert.True(t, ix.Contains(2))

	matches, err := ix.Search([]float32{5, 5}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].TrackID, "extended vectors are searchable")
}

func TestExtendRejectsDimensionMismatch(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{{TrackID: 1, Vector: []float32{0, 0}}}))

	err := ix.Extend([]Record{{TrackID: 2, Vector: []float32{1}}})
	var ierr *IndexError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, DimensionMismatch, ierr.Kind)
	assert.Equal(t, 1, ix.Size(), "failed extend leaves the index untouched")
}

func TestExtendRejectsDuplicateTrack(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{{TrackID: 1, Vector: []float32{0, 0}}}))

	err := ix.Extend([]Record{{TrackID: 1, Vector: []float32{1, 1}}})
	require.Error(t, err)
	assert.Equal(t, 1, ix.Size())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")

	ix := NewIndex()
	require.NoError(t, ix.Rebuild([]Record{
		{TrackID: 1, Vector: []float32{1, 2}},
		{TrackID: 2, Vector: []float32{3, 4}},
	}))
	assert.True(t, ix.Dirty())
	require.NoError(t, ix.Save(path))
	assert.False(t, ix.Dirty())

	loaded := LoadOrEmpty(path)
	assert.Equal(t, 2, loaded.Size())
	assert.Equal(t, 2, loaded.Dimension())

	matches, err := loaded.Search([]float32{3, 4}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].TrackID)
}

func TestLoadOrEmptyMissingFile(t *testing.T) {
	ix := LoadOrEmpty(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Equal(t, 0, ix.Size())
}

func TestLoadOrEmptyCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a gob snapshot"), 0644))

	ix := LoadOrEmpty(path)
	assert.Equal(t, 0, ix.Size(), "corruption is treated as absent, never fatal")
}

func TestDecideRefresh(t *testing.T) {
	cases := []struct {
		name      string
		added     int
		current   int
		threshold float64
		want      RefreshMode
	}{
		{"nothing added", 0, 100, 0.10, RefreshNone},
		{"empty index", 5, 0, 0.10, RefreshRebuild},
		{"small delta extends", 5, 100, 0.10, RefreshExtend},
		{"at threshold rebuilds", 10, 100, 0.10, RefreshRebuild},
		{"large delta rebuilds", 50, 100, 0.10, RefreshRebuild},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecideRefresh(tc.added, tc.current, tc.threshold))
		})
	}
}

// Package similarity maintains the flat nearest-neighbor index over track
// feature vectors. The index is a derived cache: every entry maps a dense
// position to a track id whose feature record lives in the record store, and
// it can always be rebuilt from there.
package similarity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"
)

// IndexErrorKind classifies index failures.
type IndexErrorKind int

const (
	// DimensionMismatch means a vector's length disagrees with the index.
	DimensionMismatch IndexErrorKind = iota
	// Corrupt means a persisted snapshot failed its integrity check.
	Corrupt
)

func (k IndexErrorKind) String() string {
	switch k {
	case DimensionMismatch:
		return "dimension_mismatch"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// IndexError is a recoverable index failure; callers fall back to a rebuild
// (DimensionMismatch) or an empty index (Corrupt).
type IndexError struct {
	Kind IndexErrorKind
	Err  error
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("index %s", e.Kind)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Record pairs a track id with its feature vector for bulk index loads.
type Record struct {
	TrackID int64
	Vector  []float32
}

// Match is one search hit: squared Euclidean distance, ascending.
type Match struct {
	TrackID  int64
	Distance float32
}

// Index is an exact (flat) k-nearest-neighbor index.
//
// A single RWMutex guards all state: searches during a rebuild or extend
// block until the mutation finishes, so a reader never observes a
// half-built index.
type Index struct {
	mu      sync.RWMutex
	ids     []int64 // dense position -> track id
	byID    map[int64]int
	vectors [][]float32
	dim     int
	dirty   bool
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[int64]int)}
}

// Size returns the number of indexed tracks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Dimension returns the vector dimensionality, 0 while empty.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Dirty reports whether the index has unsaved changes.
func (ix *Index) Dirty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dirty
}

// Contains reports whether the track is already indexed.
func (ix *Index) Contains(trackID int64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byID[trackID]
	return ok
}

// Rebuild clears the index and repopulates it from records.
func (ix *Index) Rebuild(records []Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ids := make([]int64, 0, len(records))
	byID := make(map[int64]int, len(records))
	vectors := make([][]float32, 0, len(records))
	dim := 0

	for _, rec := range records {
		if dim == 0 {
			dim = len(rec.Vector)
		}
		if len(rec.Vector) != dim {
			return &IndexError{Kind: DimensionMismatch,
				Err: fmt.Errorf("track %d has dimension %d, index has %d", rec.TrackID, len(rec.Vector), dim)}
		}
		if _, dup := byID[rec.TrackID]; dup {
			return &IndexError{Kind: Corrupt,
				Err: fmt.Errorf("track %d appears twice in rebuild input", rec.TrackID)}
		}
		byID[rec.TrackID] = len(ids)
		ids = append(ids, rec.TrackID)
		vectors = append(vectors, rec.Vector)
	}

	ix.ids = ids
	ix.byID = byID
	ix.vectors = vectors
	ix.dim = dim
	ix.dirty = true
	return nil
}

// Extend appends new vectors without touching existing positions. A record
// whose dimension disagrees with the index, or whose track is already
// present, fails the whole call; callers fall back to Rebuild.
func (ix *Index) Extend(records []Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, rec := range records {
		if ix.dim != 0 && len(rec.Vector) != ix.dim {
			return &IndexError{Kind: DimensionMismatch,
				Err: fmt.Errorf("track %d has dimension %d, index has %d", rec.TrackID, len(rec.Vector), ix.dim)}
		}
		if _, dup := ix.byID[rec.TrackID]; dup {
			return &IndexError{Kind: Corrupt,
				Err: fmt.Errorf("track %d already indexed", rec.TrackID)}
		}
	}

	for _, rec := range records {
		if ix.dim == 0 {
			ix.dim = len(rec.Vector)
		}
		ix.byID[rec.TrackID] = len(ix.ids)
		ix.ids = append(ix.ids, rec.TrackID)
		ix.vectors = append(ix.vectors, rec.Vector)
	}
	if len(records) > 0 {
		ix.dirty = true
	}
	return nil
}

// Search returns the k nearest tracks by squared Euclidean distance,
// ascending, with ties broken by ascending track id.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.ids) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, &IndexError{Kind: DimensionMismatch,
			Err: fmt.Errorf("query has dimension %d, index has %d", len(query), ix.dim)}
	}
	if k <= 0 {
		return nil, nil
	}

	matches := make([]Match, len(ix.ids))
	for i, vec := range ix.vectors {
		d := search.Float32s(vec).EuclideanDistance(query)
		matches[i] = Match{TrackID: ix.ids[i], Distance: d * d}
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].TrackID < matches[b].TrackID
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

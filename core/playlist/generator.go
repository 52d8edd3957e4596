// Package playlist turns a handful of seed tracks into an ordered candidate
// list: average the seed vectors, perturb slightly so "regenerate" varies,
// over-fetch neighbors, filter, and order by tempo.
package playlist

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/logger"
	"github.com/nick-seward/vibe-dj-sub000/model"
	"github.com/nick-seward/vibe-dj-sub000/repository"
)

const maxSeeds = 3

var (
	// ErrInsufficientSeeds: between 1 and 3 seed tracks, each with an
	// extracted feature record, are required.
	ErrInsufficientSeeds = errors.New("between 1 and 3 seed tracks with features are required")
	// ErrEmptyIndex: the similarity index has no entries to search.
	ErrEmptyIndex = errors.New("similarity index is empty")
)

// Generator produces playlists from seed tracks using the similarity index.
type Generator struct {
	cfg   *config.Config
	repo  repository.TrackRepository
	index *similarity.Index

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator with a time-seeded random source.
func New(cfg *config.Config, repo repository.TrackRepository, index *similarity.Index) *Generator {
	return NewSeeded(cfg, repo, index, time.Now().UnixNano())
}

// NewSeeded creates a Generator with a fixed random seed, for reproducible
// output.
func NewSeeded(cfg *config.Config, repo repository.TrackRepository, index *similarity.Index, seed int64) *Generator {
	return &Generator{
		cfg:   cfg,
		repo:  repo,
		index: index,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Generate builds an ordered playlist of up to length tracks similar to the
// seeds, excluding the seeds themselves. When the library is too small to
// satisfy length after exclusions, the playlist comes back shorter rather
// than failing.
func (g *Generator) Generate(seedIDs []int64, length int, jitterPercent float64) (*model.Playlist, error) {
	if len(seedIDs) == 0 || len(seedIDs) > maxSeeds {
		return nil, fmt.Errorf("%w: got %d seeds", ErrInsufficientSeeds, len(seedIDs))
	}
	if length <= 0 {
		return nil, fmt.Errorf("playlist length must be positive, got %d", length)
	}
	if g.index.Size() == 0 {
		return nil, ErrEmptyIndex
	}

	seedVectors, err := g.seedVectors(seedIDs)
	if err != nil {
		return nil, err
	}

	query := meanVector(seedVectors)
	g.mu.Lock()
	query = g.perturb(query, g.cfg.QueryNoiseScale)
	g.mu.Unlock()

	exclude := make(map[int64]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		exclude[id] = struct{}{}
	}

	k := length * g.cfg.CandidateMultiplier
	candidates, err := g.fetchCandidates(query, k, exclude)
	if err != nil {
		return nil, err
	}
	if len(candidates) < length && k < g.index.Size() {
		// One widening pass before settling for a shorter playlist.
		candidates, err = g.fetchCandidates(query, k*2, exclude)
		if err != nil {
			return nil, err
		}
	}

	selected := g.sample(candidates, length)

	tracks, err := g.orderByTempo(selected, jitterPercent)
	if err != nil {
		return nil, err
	}

	pl := &model.Playlist{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now(),
		SeedIDs:     seedIDs,
		Tracks:      tracks,
	}
	logger.Info("generated playlist",
		logger.String("id", pl.ID),
		logger.Int("requested", length),
		logger.Int("returned", pl.Len()))
	return pl, nil
}

// seedVectors loads and decodes the feature vectors for every seed. A seed
// without features is an input error, not a pipeline failure.
func (g *Generator) seedVectors(seedIDs []int64) ([][]float32, error) {
	features, err := g.repo.FeaturesByTrackIDs(seedIDs)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(seedIDs))
	for _, id := range seedIDs {
		f, ok := features[id]
		if !ok {
			return nil, fmt.Errorf("%w: track %d has no features", ErrInsufficientSeeds, id)
		}
		vec, err := f.FeatureVector()
		if err != nil {
			return nil, err
		}
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return nil, &similarity.IndexError{Kind: similarity.DimensionMismatch,
				Err: fmt.Errorf("seed %d has dimension %d, expected %d", id, len(vec), len(vectors[0]))}
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// fetchCandidates searches the index and filters out excluded tracks and
// duplicates, preserving ascending-distance order.
func (g *Generator) fetchCandidates(query []float32, k int, exclude map[int64]struct{}) ([]int64, error) {
	matches, err := g.index.Search(query, k)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(matches))
	var out []int64
	for _, m := range matches {
		if _, skip := exclude[m.TrackID]; skip {
			continue
		}
		if _, dup := seen[m.TrackID]; dup {
			continue
		}
		seen[m.TrackID] = struct{}{}
		out = append(out, m.TrackID)
	}
	return out, nil
}

// sample picks length candidates at random when more are available, adding
// variety beyond what query perturbation gives.
func (g *Generator) sample(candidates []int64, length int) []int64 {
	if len(candidates) <= length {
		return candidates
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	perm := g.rng.Perm(len(candidates))
	out := make([]int64, length)
	for i := 0; i < length; i++ {
		out[i] = candidates[perm[i]]
	}
	return out
}

// perturb adds Gaussian noise scaled by the vector's own spread. Zero scale
// returns the vector untouched, making repeated generations deterministic.
func (g *Generator) perturb(vec []float32, scale float64) []float32 {
	if scale <= 0 {
		return vec
	}
	std := stddev(vec)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v + float32(g.rng.NormFloat64()*std*scale)
	}
	return out
}

// orderByTempo loads the selected tracks and orders them by BPM ascending.
// jitterPercent perturbs each sort key by up to ±jitterPercent so the
// progression feels smooth without being robotic; zero jitter gives a
// strictly non-decreasing tempo sequence.
func (g *Generator) orderByTempo(ids []int64, jitterPercent float64) ([]model.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tracks, err := g.repo.TracksByIDs(ids)
	if err != nil {
		return nil, err
	}
	features, err := g.repo.FeaturesByTrackIDs(ids)
	if err != nil {
		return nil, err
	}

	type entry struct {
		track model.Track
		key   float64
	}
	entries := make([]entry, 0, len(tracks))

	g.mu.Lock()
	for _, t := range tracks {
		f, ok := features[t.ID]
		if !ok {
			continue
		}
		key := f.Tempo
		if jitterPercent > 0 {
			jitter := (g.rng.Float64()*2 - 1) * jitterPercent / 100
			key = f.Tempo * (1 + jitter)
		}
		entries = append(entries, entry{track: t, key: key})
	}
	g.mu.Unlock()

	sort.Slice(entries, func(a, b int) bool { return entries[a].key < entries[b].key })

	out := make([]model.Track, len(entries))
	for i, e := range entries {
		out[i] = e.track
	}
	return out, nil
}

// meanVector is the element-wise arithmetic mean of the seed vectors.
func meanVector(vectors [][]float32) []float32 {
	out := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			out[i] += v
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

func stddev(vec []float32) float64 {
	if len(vec) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vec {
		mean += float64(v)
	}
	mean /= float64(len(vec))

	var variance float64
	for _, v := range vec {
		d := float64(v) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(vec)))
}

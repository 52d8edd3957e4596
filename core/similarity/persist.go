package similarity

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nick-seward/vibe-dj-sub000/logger"
)

const snapshotVersion = 1

// snapshot is the on-disk form: the dense position->track id mapping plus
// the raw vector data.
type snapshot struct {
	Version int
	Dim     int
	IDs     []int64
	Vectors [][]float32
}

// LoadOrEmpty restores a persisted index, or returns an empty one when the
// snapshot is absent or fails validation. Corruption is never fatal: the
// index is a rebuildable cache.
func LoadOrEmpty(path string) *Index {
	ix := NewIndex()

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to open index snapshot, starting empty",
				logger.String("path", path), logger.ErrorField(err))
		}
		return ix
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		logger.Warn("failed to decode index snapshot, starting empty",
			logger.String("path", path), logger.ErrorField(err))
		return ix
	}
	if err := validate(&snap); err != nil {
		logger.Warn("index snapshot failed integrity check, starting empty",
			logger.String("path", path), logger.ErrorField(err))
		return ix
	}

	ix.ids = snap.IDs
	ix.vectors = snap.Vectors
	ix.dim = snap.Dim
	ix.byID = make(map[int64]int, len(snap.IDs))
	for pos, id := range snap.IDs {
		ix.byID[id] = pos
	}
	logger.Info("loaded similarity index",
		logger.String("path", path),
		logger.Int("size", len(snap.IDs)),
		logger.Int("dimension", snap.Dim))
	return ix
}

func validate(snap *snapshot) error {
	if snap.Version != snapshotVersion {
		return &IndexError{Kind: Corrupt, Err: fmt.Errorf("unsupported snapshot version %d", snap.Version)}
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return &IndexError{Kind: Corrupt,
			Err: fmt.Errorf("%d ids but %d vectors", len(snap.IDs), len(snap.Vectors))}
	}
	seen := make(map[int64]struct{}, len(snap.IDs))
	for i, id := range snap.IDs {
		if _, dup := seen[id]; dup {
			return &IndexError{Kind: Corrupt, Err: fmt.Errorf("track %d indexed twice", id)}
		}
		seen[id] = struct{}{}
		if len(snap.Vectors[i]) != snap.Dim {
			return &IndexError{Kind: Corrupt,
				Err: fmt.Errorf("vector %d has dimension %d, snapshot says %d", i, len(snap.Vectors[i]), snap.Dim)}
		}
	}
	return nil
}

// Save writes the index snapshot atomically (temp file + rename).
func (ix *Index) Save(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := snapshot{
		Version: snapshotVersion,
		Dim:     ix.dim,
		IDs:     ix.ids,
		Vectors: ix.vectors,
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create index temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close index temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace index snapshot: %w", err)
	}

	ix.dirty = false
	logger.Info("saved similarity index",
		logger.String("path", path), logger.Int("size", len(ix.ids)))
	return nil
}

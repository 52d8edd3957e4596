package indexer

import (
	"context"
	"fmt"

	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/logger"
)

// refreshIndex brings the similarity index up to date after the feature
// phase. Small deltas extend in place; anything past the rebuild threshold,
// plus any extend failure, rebuilds from the record store. A rebuild failure
// is surfaced: swallowing it would leave queries running against a stale
// index.
func (ix *Indexer) refreshIndex(processedIDs []int64) error {
	stats, err := ix.repo.CompletenessStats()
	if err != nil {
		return err
	}
	if stats.WithFeatures == 0 {
		logger.Info("no analyzed tracks, skipping index refresh")
		return nil
	}

	current := ix.index.Size()
	mode := similarity.DecideRefresh(len(processedIDs), current, ix.cfg.RebuildThreshold)
	if mode == similarity.RefreshNone && current == 0 {
		// Snapshot was lost or never written while the store has features.
		mode = similarity.RefreshRebuild
	}

	switch mode {
	case similarity.RefreshNone:
		return nil
	case similarity.RefreshExtend:
		if err := ix.extendIndex(processedIDs); err != nil {
			logger.Warn("incremental index update failed, rebuilding", logger.ErrorField(err))
			mode = similarity.RefreshRebuild
		}
	}

	if mode == similarity.RefreshRebuild {
		if err := ix.rebuildIndex(); err != nil {
			return fmt.Errorf("index rebuild failed: %w", err)
		}
	}

	return ix.index.Save(ix.cfg.IndexPath)
}

// extendIndex appends the feature vectors of the given tracks.
func (ix *Indexer) extendIndex(trackIDs []int64) error {
	var missing []int64
	for _, id := range trackIDs {
		if !ix.index.Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	features, err := ix.repo.FeaturesByTrackIDs(missing)
	if err != nil {
		return err
	}

	records := make([]similarity.Record, 0, len(missing))
	for _, id := range missing {
		f, ok := features[id]
		if !ok {
			continue
		}
		vec, err := f.FeatureVector()
		if err != nil {
			return err
		}
		records = append(records, similarity.Record{TrackID: id, Vector: vec})
	}

	if err := ix.index.Extend(records); err != nil {
		return err
	}
	logger.Info("extended similarity index",
		logger.Int("added", len(records)), logger.Int("size", ix.index.Size()))
	return nil
}

// rebuildIndex repopulates the index from every feature record in the store,
// paging to keep memory bounded while reading.
func (ix *Indexer) rebuildIndex() error {
	const rebuildPage = 500

	var records []similarity.Record
	for offset := 0; ; offset += rebuildPage {
		features, err := ix.repo.FeatureRecords(offset, rebuildPage)
		if err != nil {
			return err
		}
		for _, f := range features {
			vec, err := f.FeatureVector()
			if err != nil {
				return err
			}
			records = append(records, similarity.Record{TrackID: f.TrackID, Vector: vec})
		}
		if len(features) < rebuildPage {
			break
		}
	}

	if err := ix.index.Rebuild(records); err != nil {
		return err
	}
	logger.Info("rebuilt similarity index", logger.Int("size", ix.index.Size()))
	return nil
}

// Prune removes tracks whose files no longer exist under root. Deletion is
// never part of a normal indexing run; this is the explicit operation behind
// the --prune flag. A successful prune rebuilds the index so no dangling
// position survives.
func (ix *Indexer) Prune(ctx context.Context, root string) (int, error) {
	scanned, err := ScanLibrary(ctx, root)
	if err != nil {
		return 0, err
	}

	present := make(map[string]struct{}, len(scanned))
	for _, f := range scanned {
		present[f.Path] = struct{}{}
	}

	removed, err := ix.repo.RemoveMissing(present)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	logger.Info("pruned deleted files", logger.Int("removed", removed))
	if err := ix.rebuildIndex(); err != nil {
		return removed, fmt.Errorf("index rebuild after prune failed: %w", err)
	}
	return removed, ix.index.Save(ix.cfg.IndexPath)
}

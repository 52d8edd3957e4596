// Package indexer orchestrates the resumable indexing pipeline: scan the
// library, persist metadata, extract features with a bounded worker pool,
// and refresh the similarity index.
//
// There is no persisted checkpoint. Progress is always re-derived from the
// record store ("which tracks have no up-to-date feature record"), so an
// interrupted run resumes correctly by construction.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/core/analysis"
	"github.com/nick-seward/vibe-dj-sub000/core/similarity"
	"github.com/nick-seward/vibe-dj-sub000/logger"
	"github.com/nick-seward/vibe-dj-sub000/model"
	"github.com/nick-seward/vibe-dj-sub000/repository"
)

// Summary reports what an indexing run actually did, so operators can tell
// "fully indexed" apart from "indexed with some unanalyzable files".
type Summary struct {
	Processed int // tracks that gained a feature record this run
	Skipped   int // scanned files already indexed and unchanged
	Failed    int // per-file analysis failures, retried next run
}

// Indexer runs the three-phase pipeline. Workers call only the analyzer
// gateway; the goroutine running Run is the sole record store writer and the
// sole index mutator.
type Indexer struct {
	cfg     *config.Config
	repo    repository.TrackRepository
	gateway *analysis.Gateway
	meta    analysis.MetadataReader
	index   *similarity.Index
}

// New assembles the pipeline from its collaborators.
func New(cfg *config.Config, repo repository.TrackRepository, gateway *analysis.Gateway,
	meta analysis.MetadataReader, index *similarity.Index) *Indexer {
	return &Indexer{cfg: cfg, repo: repo, gateway: gateway, meta: meta, index: index}
}

// Run executes scan, metadata, and feature phases in order, then refreshes
// the similarity index. Cancellation via ctx stops dispatch, lets in-flight
// analyses finish or time out, flushes the partial batch, and returns the
// partial summary with a nil error; the next Run resumes the remainder.
func (ix *Indexer) Run(ctx context.Context, root string) (Summary, error) {
	var summary Summary

	if stats, err := ix.repo.CompletenessStats(); err == nil && stats.Total > 0 {
		logger.Info("existing progress",
			logger.Int64("totalTracks", stats.Total),
			logger.Int64("withFeatures", stats.WithFeatures))
	}

	scanned, err := ScanLibrary(ctx, root)
	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, nil
	}

	changed, skipped, err := ix.changedFiles(scanned)
	if err != nil {
		return summary, err
	}
	summary.Skipped = skipped

	if err := ix.metadataPhase(ctx, changed); err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, nil
	}

	processedIDs, failed, err := ix.featurePhase(ctx)
	summary.Processed = len(processedIDs)
	summary.Failed = failed
	if err != nil {
		return summary, err
	}

	if err := ix.refreshIndex(processedIDs); err != nil {
		return summary, err
	}

	logger.Info("indexing run complete",
		logger.Int("processed", summary.Processed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed))
	return summary, nil
}

// changedFiles splits the scan result into files that need a metadata upsert
// and a count of files already indexed with an unchanged fingerprint.
func (ix *Indexer) changedFiles(scanned []ScannedFile) ([]ScannedFile, int, error) {
	existing, err := ix.repo.FilePathFingerprints()
	if err != nil {
		return nil, 0, err
	}

	var changed []ScannedFile
	for _, f := range scanned {
		if fp, ok := existing[f.Path]; ok && fp == f.Fingerprint {
			continue
		}
		changed = append(changed, f)
	}
	skipped := len(scanned) - len(changed)
	logger.Info("metadata phase plan",
		logger.Int("newOrModified", len(changed)), logger.Int("unchanged", skipped))
	return changed, skipped, nil
}

// metadataPhase upserts track rows for new or modified files, committing one
// transaction per batch so a crash loses at most one partial batch.
func (ix *Indexer) metadataPhase(ctx context.Context, files []ScannedFile) error {
	for start := 0; start < len(files); start += ix.cfg.BatchSize {
		if ctx.Err() != nil {
			return nil
		}
		end := start + ix.cfg.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		err := ix.repo.Transaction(func(tx repository.TrackRepository) error {
			for _, f := range batch {
				meta, err := ix.meta.ReadMetadata(f.Path)
				if err != nil {
					logger.Warn("failed to read metadata", logger.String("path", f.Path), logger.ErrorField(err))
					meta = analysis.Metadata{Title: f.Path}
				}
				track := &model.Track{
					FilePath:    f.Path,
					Title:       meta.Title,
					Artist:      meta.Artist,
					Album:       meta.Album,
					Genre:       meta.Genre,
					Duration:    meta.Duration,
					Fingerprint: f.Fingerprint,
				}
				if _, err := tx.UpsertTrack(track); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("metadata batch failed: %w", err)
		}
	}
	if len(files) > 0 {
		logger.Info("metadata phase complete", logger.Int("upserted", len(files)))
	}
	return nil
}

// analysisResult is what a worker hands back to the writer.
type analysisResult struct {
	trackID int64
	path    string
	result  analysis.Result
	err     error
}

// featurePhase drains tracks missing features in pages, dispatching each
// track to the worker pool and writing completions from this goroutine only.
// Returns the ids of tracks that gained features and the failure count.
func (ix *Indexer) featurePhase(ctx context.Context) ([]int64, int, error) {
	var (
		processedIDs []int64
		failed       int
		attempted    = make(map[int64]struct{})
	)

	pageSize := ix.cfg.BatchSize * ix.cfg.WorkerCount
	if pageSize < ix.cfg.BatchSize {
		pageSize = ix.cfg.BatchSize
	}
	limit := pageSize

	for ctx.Err() == nil {
		tracks, err := ix.repo.TracksMissingFeatures(limit)
		if err != nil {
			return processedIDs, failed, err
		}

		// Tracks that failed earlier in this run are still "missing";
		// skip them so the loop terminates. They retry on the next run.
		page := tracks[:0:0]
		for _, t := range tracks {
			if _, done := attempted[t.ID]; !done {
				page = append(page, t)
			}
		}
		if len(page) == 0 {
			if len(tracks) < limit {
				break
			}
			// Every fetched track was already attempted; failed tracks sit
			// at the front of the id order, so widen the fetch to reach the
			// rest.
			limit *= 2
			continue
		}
		for _, t := range page {
			attempted[t.ID] = struct{}{}
		}

		logger.Info("feature phase page",
			logger.Int("tracks", len(page)), logger.Int("workers", ix.cfg.WorkerCount))

		ids, pageFailed, err := ix.processPage(ctx, page)
		processedIDs = append(processedIDs, ids...)
		failed += pageFailed
		if err != nil {
			return processedIDs, failed, err
		}
	}

	return processedIDs, failed, nil
}

// processPage runs one page through the worker pool. Workers call only the
// analyzer gateway; this goroutine drains results and commits them in batches
// of BatchSize, flushing the partial batch on exit.
func (ix *Indexer) processPage(ctx context.Context, page []model.Track) ([]int64, int, error) {
	jobs := make(chan model.Track)
	results := make(chan analysisResult, len(page))

	var wg sync.WaitGroup
	for w := 0; w < ix.cfg.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range jobs {
				res, err := ix.gateway.Analyze(ctx, track.FilePath)
				results <- analysisResult{trackID: track.ID, path: track.FilePath, result: res, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, track := range page {
			select {
			case jobs <- track:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		done     []int64
		failed   int
		batch    []analysisResult
		writeErr error
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := ix.repo.Transaction(func(tx repository.TrackRepository) error {
			for _, r := range batch {
				if err := tx.SaveFeatures(r.trackID, r.result.Vector, r.result.Tempo); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("feature batch commit failed: %w", err)
		}
		for _, r := range batch {
			done = append(done, r.trackID)
		}
		batch = batch[:0]
		return nil
	}

	for r := range results {
		if r.err != nil {
			var aerr *analysis.AnalysisError
			if errors.As(r.err, &aerr) {
				failed++
				logger.Warn("analysis failed, track will retry next run",
					logger.String("path", r.path),
					logger.String("kind", aerr.Kind.String()),
					logger.ErrorField(aerr.Err))
			}
			// Context cancellation is shutdown, not a per-file failure.
			continue
		}
		batch = append(batch, r)
		if len(batch) >= ix.cfg.BatchSize && writeErr == nil {
			writeErr = flush()
		}
	}

	if writeErr == nil {
		writeErr = flush()
	}
	return done, failed, writeErr
}

package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nick-seward/vibe-dj-sub000/model"
)

// Stats summarizes how much of the library has been analyzed.
type Stats struct {
	Total        int64 `json:"total"`
	WithFeatures int64 `json:"withFeatures"`
}

// TrackRepository defines the record store for tracks and their features.
//
// All writes during an indexing run go through the pipeline's single writer;
// the interface itself is safe for concurrent reads.
type TrackRepository interface {
	UpsertTrack(track *model.Track) (int64, error)
	SaveFeatures(trackID int64, vector []float32, tempo float64) error
	TracksMissingFeatures(limit int) ([]model.Track, error)
	CompletenessStats() (Stats, error)

	FeatureRecords(offset, limit int) ([]model.Feature, error)
	FeaturesByTrackIDs(ids []int64) (map[int64]model.Feature, error)
	TracksByIDs(ids []int64) ([]model.Track, error)
	TrackByPath(path string) (*model.Track, error)
	FilePathFingerprints() (map[string]string, error)
	RemoveMissing(present map[string]struct{}) (int, error)

	// Transaction runs fn against a transactional copy of the repository.
	// The pipeline commits one batch per call; a crash loses at most the
	// batch in flight.
	Transaction(fn func(TrackRepository) error) error
}

// gormTrackRepository implements TrackRepository on a gorm handle.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a TrackRepository backed by gdb.
func NewTrackRepository(gdb *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: gdb}
}

// UpsertTrack inserts a track or updates the existing row for its file path.
// An unchanged fingerprint leaves the row (and any feature record) alone; a
// changed fingerprint updates the track and leaves the feature record stale
// until re-extraction overwrites it.
func (r *gormTrackRepository) UpsertTrack(track *model.Track) (int64, error) {
	var existing model.Track
	err := r.db.Where("file_path = ?", track.FilePath).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.Create(track).Error; err != nil {
			return 0, fmt.Errorf("failed to create track %s: %w", track.FilePath, err)
		}
		return track.ID, nil
	case err != nil:
		return 0, fmt.Errorf("failed to look up track %s: %w", track.FilePath, err)
	}

	if existing.Fingerprint == track.Fingerprint {
		track.ID = existing.ID
		return existing.ID, nil
	}

	updates := map[string]interface{}{
		"title":       track.Title,
		"artist":      track.Artist,
		"album":       track.Album,
		"genre":       track.Genre,
		"duration":    track.Duration,
		"fingerprint": track.Fingerprint,
	}
	if err := r.db.Model(&model.Track{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("failed to update track %s: %w", track.FilePath, err)
	}
	track.ID = existing.ID
	return existing.ID, nil
}

// SaveFeatures upserts the feature record for a track, stamping it with the
// track's current fingerprint. Idempotent per track id.
func (r *gormTrackRepository) SaveFeatures(trackID int64, vector []float32, tempo float64) error {
	var track model.Track
	if err := r.db.Select("id", "fingerprint").First(&track, trackID).Error; err != nil {
		return fmt.Errorf("failed to load track %d for features: %w", trackID, err)
	}

	feature := model.Feature{
		TrackID:     trackID,
		Vector:      model.EncodeVector(vector),
		Tempo:       tempo,
		Fingerprint: track.Fingerprint,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}},
		UpdateAll: true,
	}).Create(&feature).Error
	if err != nil {
		return fmt.Errorf("failed to save features for track %d: %w", trackID, err)
	}
	return nil
}

// TracksMissingFeatures returns tracks with no feature record or a feature
// record computed from an outdated fingerprint, in ascending id order.
func (r *gormTrackRepository) TracksMissingFeatures(limit int) ([]model.Track, error) {
	var tracks []model.Track
	q := r.db.Model(&model.Track{}).
		Joins("LEFT JOIN features ON features.track_id = tracks.id").
		Where("features.track_id IS NULL OR features.fingerprint <> tracks.fingerprint").
		Order("tracks.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to query tracks missing features: %w", err)
	}
	return tracks, nil
}

// CompletenessStats counts tracks and tracks with up-to-date features.
func (r *gormTrackRepository) CompletenessStats() (Stats, error) {
	var stats Stats
	if err := r.db.Model(&model.Track{}).Count(&stats.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count tracks: %w", err)
	}
	err := r.db.Model(&model.Track{}).
		Joins("JOIN features ON features.track_id = tracks.id AND features.fingerprint = tracks.fingerprint").
		Count(&stats.WithFeatures).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count analyzed tracks: %w", err)
	}
	return stats, nil
}

// FeatureRecords pages through all feature records in ascending track id
// order, for index rebuilds.
func (r *gormTrackRepository) FeatureRecords(offset, limit int) ([]model.Feature, error) {
	var features []model.Feature
	q := r.db.Model(&model.Feature{}).Order("track_id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to page feature records: %w", err)
	}
	return features, nil
}

// FeaturesByTrackIDs loads feature records for the given tracks, keyed by
// track id. Tracks without features are simply absent from the map.
func (r *gormTrackRepository) FeaturesByTrackIDs(ids []int64) (map[int64]model.Feature, error) {
	var features []model.Feature
	if err := r.db.Where("track_id IN ?", ids).Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to load features by track ids: %w", err)
	}
	out := make(map[int64]model.Feature, len(features))
	for _, f := range features {
		out[f.TrackID] = f
	}
	return out, nil
}

// TracksByIDs loads tracks by id; missing ids are silently dropped.
func (r *gormTrackRepository) TracksByIDs(ids []int64) ([]model.Track, error) {
	var tracks []model.Track
	if err := r.db.Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to load tracks by ids: %w", err)
	}
	return tracks, nil
}

// TrackByPath finds a track by its file path, or returns nil when absent.
func (r *gormTrackRepository) TrackByPath(path string) (*model.Track, error) {
	var track model.Track
	err := r.db.Where("file_path = ?", path).First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find track by path %s: %w", path, err)
	}
	return &track, nil
}

// FilePathFingerprints returns every known file path with its stored
// fingerprint, used by the scanner to skip unchanged files.
func (r *gormTrackRepository) FilePathFingerprints() (map[string]string, error) {
	var rows []model.Track
	if err := r.db.Select("file_path", "fingerprint").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list file fingerprints: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.FilePath] = row.Fingerprint
	}
	return out, nil
}

// RemoveMissing deletes tracks (and their features) whose file path is not in
// the present set. This is the explicit prune operation; indexing never
// deletes on its own.
func (r *gormTrackRepository) RemoveMissing(present map[string]struct{}) (int, error) {
	var rows []model.Track
	if err := r.db.Select("id", "file_path").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to list tracks for prune: %w", err)
	}

	var stale []int64
	for _, row := range rows {
		if _, ok := present[row.FilePath]; !ok {
			stale = append(stale, row.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id IN ?", stale).Delete(&model.Feature{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", stale).Delete(&model.Track{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune %d tracks: %w", len(stale), err)
	}
	return len(stale), nil
}

// Transaction runs fn inside a database transaction.
func (r *gormTrackRepository) Transaction(fn func(TrackRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormTrackRepository{db: tx})
	})
}

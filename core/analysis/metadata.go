package analysis

import (
	"path/filepath"
	"strings"
)

// Metadata is the lightweight tag information persisted during the metadata
// phase, before any expensive feature extraction happens.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Duration float64
}

// MetadataReader supplies tag metadata for an audio file. Real tag parsing
// is an external collaborator; the pipeline only needs this interface.
type MetadataReader interface {
	ReadMetadata(path string) (Metadata, error)
}

// PathMetadataReader derives metadata from the file's location: an
// "Artist - Title.ext" basename and the parent directory as album. It never
// fails, which keeps the metadata phase cheap and total.
type PathMetadataReader struct{}

// ReadMetadata implements MetadataReader.
func (PathMetadataReader) ReadMetadata(path string) (Metadata, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	meta := Metadata{
		Title: name,
		Album: filepath.Base(filepath.Dir(path)),
	}
	if artist, title, ok := strings.Cut(name, " - "); ok {
		meta.Artist = strings.TrimSpace(artist)
		meta.Title = strings.TrimSpace(title)
	}
	return meta, nil
}

package model

import "time"

// Track represents an audio file in the music library.
//
// Tracks are created on first scan and updated when the file changes; they
// are never removed automatically. Pruning tracks whose files disappeared is
// an explicit operation.
type Track struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	FilePath    string    `gorm:"uniqueIndex;size:1024" json:"filePath"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Genre       string    `json:"genre"`
	Duration    float64   `json:"duration"` // seconds, 0 when unknown
	Fingerprint string    `json:"-"`        // size + mtime marker, see Fingerprint()
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Track) TableName() string { return "tracks" }

// String returns "Artist - Title" for logs and CLI output.
func (t Track) String() string {
	return t.Artist + " - " + t.Title
}

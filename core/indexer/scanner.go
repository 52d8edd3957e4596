package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/nick-seward/vibe-dj-sub000/logger"
)

// supportedExtensions are the audio formats the library scanner picks up.
var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".wav":  {},
	".ogg":  {},
}

// ScannedFile is one candidate audio file found during the scan phase.
type ScannedFile struct {
	Path        string
	Fingerprint string
}

// Fingerprint builds the cheap change marker for a file: size plus
// modification time. Any change to either re-queues the file for analysis.
func Fingerprint(info fs.FileInfo) string {
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano())
}

// ScanLibrary walks root and lists supported audio files with their
// fingerprints. Unreadable entries are logged and skipped; the scan itself
// does no heavy I/O.
func ScanLibrary(ctx context.Context, root string) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn("skipping unreadable path", logger.String("path", path), logger.ErrorField(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping file without stat info", logger.String("path", path), logger.ErrorField(err))
			return nil
		}
		files = append(files, ScannedFile{Path: path, Fingerprint: Fingerprint(info)})
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("failed to scan library %s: %w", root, err)
	}

	logger.Info("library scan complete", logger.String("root", root), logger.Int("files", len(files)))
	return files, nil
}

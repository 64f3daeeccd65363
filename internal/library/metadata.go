package library

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/jscyril/mileage_mafia/api"
)

// MetadataReader fills in track details from embedded audio tags
type MetadataReader struct {
	log *slog.Logger
}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader(logger *slog.Logger) *MetadataReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataReader{log: logger}
}

// Read extracts title and artist from a local audio file
func (r *MetadataReader) Read(filePath string) (tag.Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	return metadata, nil
}

// Enrich returns t with an empty Title or Artist filled from the file's
// tags. Remote sources and untagged files fall back to the file name for
// the title. Configured values always win.
func (r *MetadataReader) Enrich(t api.Track) api.Track {
	path, local := localPath(t.Source)
	if !local {
		return t
	}

	if t.Title != "" && t.Artist != "" {
		return t
	}

	metadata, err := r.Read(path)
	if err != nil {
		r.log.Debug("audio_event", "event", "tags_unavailable", "track", t.ID, "error", err)
		t.Title = getOrDefault(t.Title, titleFromPath(path))
		return t
	}

	t.Title = getOrDefault(t.Title, getOrDefault(metadata.Title(), titleFromPath(path)))
	t.Artist = getOrDefault(t.Artist, metadata.Artist())
	return t
}

// EnrichAll enriches every track in order
func (r *MetadataReader) EnrichAll(tracks []api.Track) []api.Track {
	out := make([]api.Track, len(tracks))
	for i, t := range tracks {
		out[i] = r.Enrich(t)
	}
	return out
}

func localPath(source string) (string, bool) {
	u, err := url.Parse(source)
	if err != nil || len(u.Scheme) <= 1 {
		return source, true
	}
	if u.Scheme == "file" {
		return filepath.FromSlash(u.Path), true
	}
	return "", false
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

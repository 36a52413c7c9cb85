package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	artifactExt     = ".png"
	thumbnailSuffix = "-thumbnail"
)

// Manager owns the screenshot directory: one artifact and one thumbnail per user
type Manager struct {
	dir string
}

// NewManager creates a storage manager rooted at dir, creating it if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the screenshot directory
func (m *Manager) Dir() string {
	return m.dir
}

// ArtifactPath returns where the screenshot for username lives
func (m *Manager) ArtifactPath(username string) string {
	return filepath.Join(m.dir, ArtifactName(username))
}

// ThumbnailPath returns where the thumbnail for username lives
func (m *Manager) ThumbnailPath(username string) string {
	return filepath.Join(m.dir, ThumbnailName(username))
}

// ArtifactName is the file name of a user's screenshot
func ArtifactName(username string) string {
	return username + artifactExt
}

// ThumbnailName is the file name of a user's thumbnail
func ThumbnailName(username string) string {
	return username + thumbnailSuffix + artifactExt
}

// ReservedName reports whether username would collide with another user's
// thumbnail file
func ReservedName(username string) bool {
	return strings.HasSuffix(username, thumbnailSuffix)
}

// ThumbnailFor derives the thumbnail path that sits next to an artifact path
func ThumbnailFor(artifactPath string) string {
	ext := filepath.Ext(artifactPath)
	return strings.TrimSuffix(artifactPath, ext) + thumbnailSuffix + ext
}

// HasArtifact reports whether a screenshot for username exists on disk
func (m *Manager) HasArtifact(username string) bool {
	info, err := os.Stat(m.ArtifactPath(username))
	return err == nil && info.Mode().IsRegular()
}

// RemoveArtifacts deletes the screenshot and thumbnail of username.
// Files that are already gone are not an error; every other failure is
// reported, joined.
func (m *Manager) RemoveArtifacts(username string) error {
	var errs []error
	for _, path := range []string{m.ArtifactPath(username), m.ThumbnailPath(username)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Artifact is a file that belongs in the published gallery
type Artifact struct {
	// Name is the path inside the archive
	Name string
	// Path is the location on disk
	Path string
}

// Artifacts lists the surviving screenshot and thumbnail files for the
// given users, sorted by name. Users without files are skipped and every
// name appears once.
func (m *Manager) Artifacts(usernames []string) []Artifact {
	var out []Artifact
	seen := make(map[string]bool)
	for _, u := range usernames {
		for _, name := range []string{ArtifactName(u), ThumbnailName(u)} {
			if seen[name] {
				continue
			}
			seen[name] = true
			path := filepath.Join(m.dir, name)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			out = append(out, Artifact{Name: name, Path: path})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

// Store loads and persists a cache Document at a fixed path
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store for the cache file at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:   path,
		logger: log,
	}
}

// Path returns the cache file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache document. A missing, unreadable or corrupt file
// yields an empty document.
func (s *Store) Load() *Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.InfoWithFields("No cache found, starting empty", map[string]interface{}{
				"path": s.path,
			})
		} else {
			s.logger.WithError(err).WarnWithFields("Cache unreadable, starting empty", map[string]interface{}{
				"path": s.path,
			})
		}
		return NewDocument()
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.WithError(err).WarnWithFields("Cache corrupt, starting empty", map[string]interface{}{
			"path": s.path,
		})
		return NewDocument()
	}

	s.logger.InfoWithFields("Cache loaded", map[string]interface{}{
		"path":                 s.path,
		"users":                len(doc.Users),
		"default_fingerprints": doc.DefaultFingerprints.Len(),
		"generation_timestamp": doc.GenerationTimestamp,
	})

	return doc
}

// Save writes the document to disk atomically: a crash leaves either the
// previous file or the new one, never a partial write.
func (s *Store) Save(doc *Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync cache file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set cache file mode: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	s.logger.DebugWithFields("Cache saved", map[string]interface{}{
		"path":                 s.path,
		"users":                len(doc.Users),
		"generation_timestamp": doc.GenerationTimestamp,
	})

	return nil
}

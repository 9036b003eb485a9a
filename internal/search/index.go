package search

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// mappingVersion must change whenever buildIndexMapping does. An index
// written under another version is dropped on open and refilled by the
// startup reindex.
const mappingVersion = "1"

const (
	indexDirName    = "entries.bleve"
	versionFileName = "entries.version"
	batchSize       = 500
)

// SearchIndex is a Bleve full-text index over dataset entries. All methods
// are safe for concurrent use; Rebuild and Close take the write lock.
type SearchIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	dir    string
	logger *slog.Logger
}

// Options configures the search index.
type Options struct {
	DataPath string
	Logger   *slog.Logger
}

// NewSearchIndex opens the entry index under opts.DataPath, creating it when
// missing, unreadable or written with an older mapping.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &SearchIndex{
		dir:    filepath.Join(opts.DataPath, indexDirName),
		logger: logger,
	}
	versionPath := filepath.Join(opts.DataPath, versionFileName)

	if idx, ok := s.openCurrent(versionPath); ok {
		s.index = idx
		logger.Info("opened search index", "path", s.dir)
		return s, nil
	}

	idx, err := s.create()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
		logger.Warn("failed to write search index version", "error", err)
	}
	s.index = idx
	logger.Info("created search index", "path", s.dir, "mapping_version", mappingVersion)
	return s, nil
}

// openCurrent opens the existing index when its recorded mapping version
// matches.
func (s *SearchIndex) openCurrent(versionPath string) (bleve.Index, bool) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, false
	}

	version, err := os.ReadFile(versionPath)
	if err != nil || string(version) != mappingVersion {
		s.logger.Info("search index mapping changed, rebuilding",
			"found", string(version),
			"want", mappingVersion,
		)
		return nil, false
	}

	idx, err := bleve.Open(s.dir)
	if err != nil {
		s.logger.Warn("search index unreadable, rebuilding", "path", s.dir, "error", err)
		return nil, false
	}
	return idx, true
}

// create removes whatever is at the index path and writes an empty index.
func (s *SearchIndex) create() (bleve.Index, error) {
	if err := os.RemoveAll(s.dir); err != nil {
		return nil, fmt.Errorf("remove search index: %w", err)
	}
	idx, err := bleve.New(s.dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return idx, nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument adds or replaces one entry.
func (s *SearchIndex) IndexDocument(doc *EntryDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments adds or replaces entries in batches of batchSize.
func (s *SearchIndex) IndexDocuments(docs []*EntryDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("index entry %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit entries %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DocumentCount returns the number of indexed entries across all datasets.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index with an empty one. Searches block until it
// returns.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close search index: %w", err)
	}
	idx, err := s.create()
	if err != nil {
		return err
	}
	s.index = idx
	s.logger.Info("rebuilt search index", "path", s.dir)
	return nil
}

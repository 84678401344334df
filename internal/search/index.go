package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/Colorex-team/Colorex-System/internal/logger"
)

// Index wraps a Bleve index of post titles.
//
// All public methods are safe for concurrent use. The mutex keeps
// operations off the index while Rebuild swaps it.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	// DataPath is the directory holding the index. Empty keeps it in memory.
	DataPath string
	Logger   *slog.Logger
}

// mappingVersion is bumped whenever the index mapping changes.
// A mismatch on startup drops and recreates the index.
const mappingVersion = "1"

// batchSize bounds one Bleve batch during bulk indexing.
const batchSize = 500

// Open creates or opens the search index.
// A corrupted index or one with an outdated mapping is removed and recreated;
// callers repopulate it with Reindex.
func Open(opts Options) (*Index, error) {
	log := logger.OrDiscard(opts.Logger)

	if opts.DataPath == "" {
		index, err := newIndex("")
		if err != nil {
			return nil, err
		}
		return &Index{index: index, logger: log}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "posts.bleve")
	versionPath := filepath.Join(opts.DataPath, "posts.version")

	var index bleve.Index
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			log.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			log.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		var err error
		index, err = newIndex(indexPath)
		if err != nil {
			return nil, err
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			log.Warn("failed to write search version file", "error", writeErr)
		}
		log.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		log.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: log,
	}, nil
}

func newIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var index bleve.Index
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else {
		index, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return index, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexPost adds or replaces one post.
func (s *Index) IndexPost(doc *PostDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.toMap())
}

// IndexPosts adds or replaces posts in batches.
func (s *Index) IndexPosts(docs []*PostDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeletePost removes a post. Deleting an unknown id is not an error.
func (s *Index) DeletePost(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed posts.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every indexed post and starts from an empty index.
// It blocks all other operations until done.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if s.path != "" {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
	}

	index, err := newIndex(s.path)
	if err != nil {
		return err
	}
	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}

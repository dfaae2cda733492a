package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/cardboxapp/cardbox/internal/domain"
)

// mappingVersion is incremented whenever the index mapping changes,
// forcing a rebuild on startup when the stored version does not match.
const mappingVersion = "1"

// Index wraps a Bleve index over the device's cards.
//
// All public methods are safe for concurrent use; the mutex protects
// against corruption during rebuilds.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	Path   string       // Index directory, e.g. {data}/search.bleve
	Logger *slog.Logger // Uses a stderr text handler when nil
}

// NewIndex opens the index at opts.Path, creating it when missing and
// recreating it when corrupted or written with an older mapping.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := opts.Path
	versionPath := indexPath + ".version"

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping outdated, rebuilding",
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing search index, recreating",
				"path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created search index", "path", indexPath)
	} else {
		logger.Info("opened search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexCard indexes one card, replacing any previous version.
func (s *Index) IndexCard(card *domain.Card) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := FromCard(card)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexCards indexes cards in batches. Much faster than IndexCard in a
// loop during the initial pull.
func (s *Index) IndexCards(cards []*domain.Card) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500
	for i := 0; i < len(cards); i += batchSize {
		end := min(i+batchSize, len(cards))

		batch := s.index.NewBatch()
		for _, card := range cards[i:end] {
			doc := FromCard(card)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteCard removes a card from the index.
func (s *Index) DeleteCard(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// Count returns the number of indexed cards.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and reindexes the given cards from scratch.
// Blocks all other index operations while it runs.
func (s *Index) Rebuild(cards []*domain.Card) error {
	s.mu.Lock()

	if err := s.index.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("recreate index: %w", err)
	}
	s.index = index
	if err := os.WriteFile(filepath.Clean(s.path+".version"), []byte(mappingVersion), 0o644); err != nil {
		s.logger.Warn("failed to write search version file", "error", err)
	}
	s.mu.Unlock()

	return s.IndexCards(cards)
}

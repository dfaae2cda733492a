package service

import (
	"context"
	"log/slog"

	"github.com/cardboxapp/cardbox/internal/search"
	"github.com/cardboxapp/cardbox/internal/store"
)

// SearchService answers card searches and keeps the index recoverable.
type SearchService struct {
	store  *store.Store
	search *search.Index
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(st *store.Store, idx *search.Index, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  st,
		search: idx,
		logger: logger,
	}
}

// Search runs a query against the card index.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit <= 0 {
		params.Limit = search.DefaultParams().Limit
	}
	return s.search.Search(ctx, params)
}

// RebuildIndex re-indexes every card in the store. Used after a mapping
// change and exposed as a manual recovery command.
func (s *SearchService) RebuildIndex(ctx context.Context) (int, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.search.Rebuild(cards); err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt", "cards", len(cards))
	return len(cards), nil
}

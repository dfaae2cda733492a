// Package service implements the client-facing operations over the
// local store: card management, daily sessions, reviews, settings and
// search. Services notify the sync engine after every mutation so local
// changes reach the backend within one debounce window.
package service

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/id"
	"github.com/cardboxapp/cardbox/internal/search"
	"github.com/cardboxapp/cardbox/internal/store"
)

// SyncNotifier receives a nudge after local mutations. The sync engine
// implements it; NoopNotifier serves signed-out operation.
type SyncNotifier interface {
	RequestSync(ctx context.Context)
}

// NoopNotifier ignores sync requests. Used while no user is signed in.
type NoopNotifier struct{}

// RequestSync does nothing.
func (NoopNotifier) RequestSync(context.Context) {}

// CardService manages the card collection.
type CardService struct {
	store    *store.Store
	search   *search.Index
	notifier SyncNotifier
	logger   *slog.Logger
}

// NewCardService creates a new card service.
func NewCardService(st *store.Store, idx *search.Index, notifier SyncNotifier, logger *slog.Logger) *CardService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &CardService{
		store:    st,
		search:   idx,
		notifier: notifier,
		logger:   logger,
	}
}

// SetNotifier swaps the sync notifier, e.g. after sign-in.
func (s *CardService) SetNotifier(notifier SyncNotifier) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	s.notifier = notifier
}

// CreateCardInput holds the fields for a new manual card.
type CreateCardInput struct {
	Front string   `json:"front" validate:"required,max=2000"`
	Back  string   `json:"back" validate:"required,max=2000"`
	Hint  string   `json:"hint,omitempty" validate:"max=500"`
	Tags  []string `json:"tags,omitempty"`
}

// CreateCard creates a manually authored card with its initial review
// state.
func (s *CardService) CreateCard(ctx context.Context, input CreateCardInput) (*domain.Card, error) {
	if input.Front == "" || input.Back == "" {
		return nil, errors.Validation("front and back are required")
	}

	card := &domain.Card{
		Front:  input.Front,
		Back:   input.Back,
		Hint:   input.Hint,
		Tags:   domain.NormalizeTags(input.Tags),
		Source: domain.SourceManual,
	}
	card.ID = id.Card()
	card.InitTimestamps()

	if err := s.store.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	if err := s.search.IndexCard(card); err != nil {
		s.logger.Warn("failed to index new card", "card", card.ID, "error", err)
	}

	s.logger.Info("card created", "card", card.ID)
	s.notifier.RequestSync(ctx)
	return card, nil
}

// UpdateCardInput contains the fields that can be changed on a card.
// Nil fields are left untouched.
type UpdateCardInput struct {
	Front *string   `json:"front,omitempty" validate:"omitempty,max=2000"`
	Back  *string   `json:"back,omitempty" validate:"omitempty,max=2000"`
	Hint  *string   `json:"hint,omitempty" validate:"omitempty,max=500"`
	Tags  *[]string `json:"tags,omitempty"`
}

// UpdateCard applies a partial update and bumps the card's timestamp so
// the edit wins last-write-wins merges against older copies.
func (s *CardService) UpdateCard(ctx context.Context, cardID string, input UpdateCardInput) (*domain.Card, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if input.Front != nil {
		if *input.Front == "" {
			return nil, errors.Validation("front cannot be empty")
		}
		card.Front = *input.Front
	}
	if input.Back != nil {
		if *input.Back == "" {
			return nil, errors.Validation("back cannot be empty")
		}
		card.Back = *input.Back
	}
	if input.Hint != nil {
		card.Hint = *input.Hint
	}
	if input.Tags != nil {
		card.Tags = domain.NormalizeTags(*input.Tags)
	}
	card.Touch()

	if err := s.store.PutCard(ctx, card); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	if err := s.search.IndexCard(card); err != nil {
		s.logger.Warn("failed to reindex card", "card", card.ID, "error", err)
	}

	s.notifier.RequestSync(ctx)
	return card, nil
}

// DeleteCard removes a card, its review state and logs. If the card was
// ever pushed, its remote copy is deleted on the next sync pass.
func (s *CardService) DeleteCard(ctx context.Context, cardID string) error {
	if err := s.store.DeleteCardCascade(ctx, cardID); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if err := s.search.DeleteCard(cardID); err != nil {
		s.logger.Warn("failed to remove card from index", "card", cardID, "error", err)
	}

	s.logger.Info("card deleted", "card", cardID)
	s.notifier.RequestSync(ctx)
	return nil
}

// GetCard retrieves a card by local id.
func (s *CardService) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	return s.store.GetCard(ctx, cardID)
}

// ListCards returns all cards on this device.
func (s *CardService) ListCards(ctx context.Context) ([]*domain.Card, error) {
	return s.store.ListCards(ctx)
}

// PackCard is one card of a published pack.
type PackCard struct {
	PublicID string   `json:"public_id" validate:"required"`
	Front    string   `json:"front" validate:"required"`
	Back     string   `json:"back" validate:"required"`
	Hint     string   `json:"hint,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ImportResult summarizes a pack import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportPack imports cards from a published pack. Cards already present
// (matched by pack id + public id) are skipped, so re-importing the same
// pack is idempotent.
func (s *CardService) ImportPack(ctx context.Context, packID string, cards []PackCard) (*ImportResult, error) {
	if packID == "" {
		return nil, errors.Validation("pack id is required")
	}

	result := &ImportResult{}
	var indexed []*domain.Card
	for _, pc := range cards {
		_, err := s.store.GetCardBySource(ctx, packID, pc.PublicID)
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}

		card := &domain.Card{
			Front:          pc.Front,
			Back:           pc.Back,
			Hint:           pc.Hint,
			Tags:           domain.NormalizeTags(pc.Tags),
			Source:         domain.SourcePublicPack,
			SourcePackID:   packID,
			SourcePublicID: pc.PublicID,
		}
		card.ID = id.Card()
		card.InitTimestamps()

		if err := s.store.CreateCard(ctx, card); err != nil {
			return nil, fmt.Errorf("import card %s: %w", pc.PublicID, err)
		}
		indexed = append(indexed, card)
		result.Imported++
	}

	if len(indexed) > 0 {
		if err := s.search.IndexCards(indexed); err != nil {
			s.logger.Warn("failed to index imported cards", "error", err)
		}
	}

	s.logger.Info("pack imported", "pack", packID,
		"imported", result.Imported, "skipped", result.Skipped)
	s.notifier.RequestSync(ctx)
	return result, nil
}

// PackFile is the on-disk shape of a published pack.
type PackFile struct {
	PackID string     `json:"pack_id"`
	Name   string     `json:"name,omitempty"`
	Cards  []PackCard `json:"cards"`
}

// ImportPackFile imports a pack from a JSON file, typically one dropped
// into the watched pack directory.
func (s *CardService) ImportPackFile(ctx context.Context, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the watched pack directory
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var pack PackFile
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "malformed pack file")
	}
	return s.ImportPack(ctx, pack.PackID, pack.Cards)
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/store"
	"github.com/cardboxapp/cardbox/internal/validation"
)

// SettingsService reads and updates the scheduling settings.
type SettingsService struct {
	store     *store.Store
	validator *validation.Validator
	notifier  SyncNotifier
	logger    *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(st *store.Store, v *validation.Validator, notifier SyncNotifier, logger *slog.Logger) *SettingsService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &SettingsService{
		store:     st,
		validator: v,
		notifier:  notifier,
		logger:    logger,
	}
}

// SetNotifier swaps the sync notifier, e.g. after sign-in.
func (s *SettingsService) SetNotifier(notifier SyncNotifier) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	s.notifier = notifier
}

// Get returns the current settings, falling back to defaults when none
// have been saved yet.
func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	return s.store.GetSettings(ctx)
}

// Update validates and persists new settings. The whole document is
// replaced; callers start from Get and modify the fields they want.
func (s *SettingsService) Update(ctx context.Context, settings *domain.Settings) (*domain.Settings, error) {
	if err := s.validator.Validate(settings); err != nil {
		return nil, err
	}

	if err := s.store.SaveSettings(ctx, settings, time.Now()); err != nil {
		return nil, err
	}

	s.logger.Info("settings updated",
		"box1_target_size", settings.Box1TargetSize,
		"reverse_probability", settings.ReverseProbability)
	s.notifier.RequestSync(ctx)
	return settings, nil
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cardboxapp/cardbox/internal/remote"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSnapshot",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/snapshot",
		Summary:     "Get sync snapshot",
		Description: "Returns the user's full server-side state: cards, progress, review logs and settings.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSnapshot)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsertCards",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/cards",
		Summary:     "Push cards",
		Description: "Upserts cards by cloud id. Rows older than the stored copy are ignored.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpsertCards)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsertProgress",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/progress",
		Summary:     "Push review progress",
		Description: "Upserts per-card progress by card cloud id with last-write-wins.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpsertProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsertSettings",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/settings",
		Summary:     "Push settings",
		Description: "Upserts the user's study settings with last-write-wins.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpsertSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "insertReviewLogs",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/logs",
		Summary:     "Push review logs",
		Description: "Appends review logs, idempotent on client event id.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleInsertReviewLogs)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCards",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/cards/delete",
		Summary:     "Delete cards",
		Description: "Deletes cards and their progress by cloud id. Review logs are kept.",
		Tags:        []string{"Sync"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteCards)
}

// === DTOs ===

// AuthedInput carries only the bearer token.
type AuthedInput struct {
	Authorization string `header:"Authorization"`
}

// SnapshotOutput wraps the snapshot response.
type SnapshotOutput struct {
	Body remote.Snapshot
}

// UpsertCardsInput is the card push request.
type UpsertCardsInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Cards []remote.Card `json:"cards" doc:"Cards to upsert"`
	}
}

// UpsertProgressInput is the progress push request.
type UpsertProgressInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Progress []remote.Progress `json:"progress" doc:"Progress rows to upsert"`
	}
}

// UpsertSettingsInput is the settings push request.
type UpsertSettingsInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Settings *remote.Settings `json:"settings" doc:"Settings to upsert"`
	}
}

// InsertReviewLogsInput is the review log push request.
type InsertReviewLogsInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		Logs []remote.ReviewLog `json:"logs" doc:"Review logs to append"`
	}
}

// DeleteCardsInput is the card delete request.
type DeleteCardsInput struct {
	Authorization string `header:"Authorization"`
	Body          struct {
		CloudIDs []string `json:"cloud_ids" doc:"Cloud ids of cards to delete"`
	}
}

// AcceptedOutput acknowledges a write.
type AcceptedOutput struct {
	Body struct {
		Accepted int `json:"accepted" doc:"Number of rows accepted"`
	}
}

func accepted(n int) *AcceptedOutput {
	out := &AcceptedOutput{}
	out.Body.Accepted = n
	return out
}

// === Handlers ===

func (s *Server) handleGetSnapshot(ctx context.Context, input *AuthedInput) (*SnapshotOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.FetchSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SnapshotOutput{Body: *snapshot}, nil
}

func (s *Server) handleUpsertCards(ctx context.Context, input *UpsertCardsInput) (*AcceptedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertCards(ctx, userID, input.Body.Cards); err != nil {
		return nil, err
	}
	return accepted(len(input.Body.Cards)), nil
}

func (s *Server) handleUpsertProgress(ctx context.Context, input *UpsertProgressInput) (*AcceptedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertProgress(ctx, userID, input.Body.Progress); err != nil {
		return nil, err
	}
	return accepted(len(input.Body.Progress)), nil
}

func (s *Server) handleUpsertSettings(ctx context.Context, input *UpsertSettingsInput) (*AcceptedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertSettings(ctx, userID, input.Body.Settings); err != nil {
		return nil, err
	}
	return accepted(1), nil
}

func (s *Server) handleInsertReviewLogs(ctx context.Context, input *InsertReviewLogsInput) (*AcceptedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertReviewLogs(ctx, userID, input.Body.Logs); err != nil {
		return nil, err
	}
	return accepted(len(input.Body.Logs)), nil
}

func (s *Server) handleDeleteCards(ctx context.Context, input *DeleteCardsInput) (*AcceptedOutput, error) {
	userID, err := s.authenticateRequest(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteCards(ctx, userID, input.Body.CloudIDs); err != nil {
		return nil, err
	}
	return accepted(len(input.Body.CloudIDs)), nil
}

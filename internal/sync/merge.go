package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/id"
	"github.com/cardboxapp/cardbox/internal/remote"
)

// runPass executes one full reconciliation. Queued remote deletions are
// flushed before the snapshot fetch so a deleted card cannot be pulled
// straight back in. The watermark only advances when every step
// succeeded.
func (e *Engine) runPass(ctx context.Context, forcePull bool) error {
	passTime := e.now()

	if err := e.flushDeleteQueue(ctx); err != nil {
		return fmt.Errorf("flush delete queue: %w", err)
	}

	snapshot, err := e.remote.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	localEmpty, err := e.localEmpty(ctx)
	if err != nil {
		return err
	}

	switch {
	case snapshot.Empty() && localEmpty:
		// Nothing on either side yet.
	case snapshot.Empty():
		if err := e.pushAll(ctx, passTime); err != nil {
			return err
		}
	case localEmpty:
		if err := e.pullAll(ctx, snapshot, passTime); err != nil {
			return err
		}
	default:
		if err := e.mergeSnapshots(ctx, snapshot, passTime); err != nil {
			return err
		}
	}

	if err := e.store.SetWatermark(ctx, passTime); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	e.logger.Debug("sync pass complete", "user", e.userID, "force_pull", forcePull)
	return nil
}

func (e *Engine) localEmpty(ctx context.Context) (bool, error) {
	cards, err := e.store.ListCards(ctx)
	if err != nil {
		return false, err
	}
	return len(cards) == 0, nil
}

func (e *Engine) flushDeleteQueue(ctx context.Context) error {
	queued, err := e.store.PendingRemoteDeletes(ctx)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}
	if err := e.remote.DeleteCards(ctx, queued); err != nil {
		return err
	}
	return e.store.ClearRemoteDeletes(ctx, queued)
}

// pushAll handles the first sync of a device that has local data against
// an empty remote: assign cloud ids, then push everything as-is. No
// deletion inference happens on a first sync.
func (e *Engine) pushAll(ctx context.Context, passTime time.Time) error {
	cards, err := e.store.ListCards(ctx)
	if err != nil {
		return err
	}

	cloudByLocal := make(map[string]string, len(cards))
	wireCards := make([]remote.Card, 0, len(cards))
	for _, card := range cards {
		if card.CloudID == "" {
			card.CloudID = id.Cloud()
			if err := e.store.PutCard(ctx, card); err != nil {
				return fmt.Errorf("assign cloud id: %w", err)
			}
		}
		cloudByLocal[card.ID] = card.CloudID
		wireCards = append(wireCards, remote.CardToWire(card))
	}

	states, err := e.store.ListReviewStates(ctx)
	if err != nil {
		return err
	}
	wireProgress := make([]remote.Progress, 0, len(states))
	for _, state := range states {
		cloudID, ok := cloudByLocal[state.CardID]
		if !ok {
			continue
		}
		wireProgress = append(wireProgress, remote.ProgressToWire(state, cloudID))
	}

	logs, err := e.store.ListUnsyncedReviewLogs(ctx)
	if err != nil {
		return err
	}
	wireLogs := make([]remote.ReviewLog, 0, len(logs))
	logIDs := make([]string, 0, len(logs))
	for _, log := range logs {
		cloudID, ok := cloudByLocal[log.CardID]
		if !ok {
			continue
		}
		wireLogs = append(wireLogs, remote.LogToWire(log, cloudID))
		logIDs = append(logIDs, log.ID)
	}

	if err := e.remote.UpsertCards(ctx, wireCards); err != nil {
		return err
	}
	if err := e.remote.UpsertProgress(ctx, wireProgress); err != nil {
		return err
	}
	if err := e.remote.InsertReviewLogs(ctx, wireLogs); err != nil {
		return err
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.UpdatedAt.IsZero() {
		if err := e.remote.UpsertSettings(ctx, remote.SettingsToWire(settings)); err != nil {
			return err
		}
	}

	for _, card := range cards {
		card.MarkSynced(passTime)
		if err := e.store.PutCard(ctx, card); err != nil {
			return err
		}
	}
	if err := e.store.MarkReviewLogsSynced(ctx, logIDs, passTime); err != nil {
		return err
	}

	e.logger.Info("first push complete", "user", e.userID, "cards", len(wireCards), "logs", len(wireLogs))
	return nil
}

// pullAll materializes a non-empty remote on an empty device, bulk
// writing through the batch writer.
func (e *Engine) pullAll(ctx context.Context, snapshot *remote.Snapshot, passTime time.Time) error {
	batch := e.store.NewBatchWriter(pullBatchSize)
	defer batch.Cancel()

	localByCloud := make(map[string]string, len(snapshot.Cards))
	for _, wc := range snapshot.Cards {
		card := remote.CardFromWire(wc, id.Card())
		card.MarkSynced(passTime)
		if err := batch.PutCard(card); err != nil {
			return err
		}
		localByCloud[wc.CloudID] = card.ID
	}

	seenState := make(map[string]bool, len(snapshot.Progress))
	for _, wp := range snapshot.Progress {
		localID, ok := localByCloud[wp.CardCloudID]
		if !ok {
			continue
		}
		state := domain.NewReviewState(localID)
		remote.ApplyProgress(state, wp)
		if err := batch.PutReviewState(state); err != nil {
			return err
		}
		seenState[localID] = true
	}
	// Cards whose progress never made it remotely still need a state row.
	for _, localID := range localByCloud {
		if !seenState[localID] {
			if err := batch.PutReviewState(domain.NewReviewState(localID)); err != nil {
				return err
			}
		}
	}

	for _, wl := range snapshot.Logs {
		localID, ok := localByCloud[wl.CardCloudID]
		if !ok {
			continue
		}
		log := remote.LogFromWire(wl, id.ReviewLog(), localID, passTime)
		if err := batch.PutReviewLog(log); err != nil {
			return err
		}
	}

	if err := batch.Flush(); err != nil {
		return err
	}

	if snapshot.Settings != nil {
		if err := e.store.PutSettings(ctx, remote.SettingsFromWire(snapshot.Settings)); err != nil {
			return err
		}
	}

	e.logger.Info("initial pull complete", "user", e.userID,
		"cards", len(snapshot.Cards), "logs", len(snapshot.Logs))
	return nil
}

// mergeSnapshots reconciles a non-empty local store with a non-empty
// remote snapshot. Each entity family merges independently by
// last-write-wins on updated_at; absence from the remote snapshot is
// never treated as deletion, only queued deletes remove data.
func (e *Engine) mergeSnapshots(ctx context.Context, snapshot *remote.Snapshot, passTime time.Time) error {
	pendingDeletes, err := e.store.PendingRemoteDeletes(ctx)
	if err != nil {
		return err
	}
	deleting := make(map[string]bool, len(pendingDeletes))
	for _, cid := range pendingDeletes {
		deleting[cid] = true
	}

	cards, err := e.store.ListCards(ctx)
	if err != nil {
		return err
	}
	byCloud := make(map[string]*domain.Card, len(cards))
	for _, card := range cards {
		if card.CloudID != "" {
			byCloud[card.CloudID] = card
		}
	}

	var (
		pushCards  []remote.Card
		pushedLoc  []*domain.Card
		remoteSeen = make(map[string]bool, len(snapshot.Cards))
	)

	for _, wc := range snapshot.Cards {
		remoteSeen[wc.CloudID] = true
		if deleting[wc.CloudID] {
			// Locally deleted; the queued delete will catch up.
			continue
		}
		local, ok := byCloud[wc.CloudID]
		if !ok {
			// Remote creation wins unconditionally.
			card := remote.CardFromWire(wc, id.Card())
			card.MarkSynced(passTime)
			if err := e.store.PutCard(ctx, card); err != nil {
				return err
			}
			if err := e.ensureState(ctx, card.ID); err != nil {
				return err
			}
			byCloud[wc.CloudID] = card
			continue
		}
		switch domain.CompareByUpdatedAt(local.UpdatedAt, wc.UpdatedAt) {
		case domain.RemoteWins:
			remote.ApplyCard(local, wc)
			local.MarkSynced(passTime)
			if err := e.store.PutCard(ctx, local); err != nil {
				return err
			}
		case domain.LocalWins:
			pushCards = append(pushCards, remote.CardToWire(local))
			pushedLoc = append(pushedLoc, local)
		case domain.Equal:
			// Converged already.
		}
	}

	// Local cards the snapshot does not mention: assign missing cloud
	// ids and push. A previously synced card missing remotely is
	// re-pushed rather than deleted; a truncated fetch must never cost
	// the user data.
	for _, card := range cards {
		if card.CloudID == "" {
			card.CloudID = id.Cloud()
			if err := e.store.PutCard(ctx, card); err != nil {
				return fmt.Errorf("assign cloud id: %w", err)
			}
			byCloud[card.CloudID] = card
		}
		if !remoteSeen[card.CloudID] && !deleting[card.CloudID] {
			pushCards = append(pushCards, remote.CardToWire(card))
			pushedLoc = append(pushedLoc, card)
		}
	}

	byLocal := make(map[string]*domain.Card, len(byCloud))
	for _, card := range byCloud {
		byLocal[card.ID] = card
	}

	pushProgress, err := e.mergeProgress(ctx, snapshot, byCloud, byLocal)
	if err != nil {
		return err
	}
	pushLogs, pushedLogIDs, err := e.mergeLogs(ctx, snapshot, byCloud, byLocal, passTime)
	if err != nil {
		return err
	}
	pushSettings, err := e.mergeSettings(ctx, snapshot)
	if err != nil {
		return err
	}

	if err := e.remote.UpsertCards(ctx, pushCards); err != nil {
		return err
	}
	if err := e.remote.UpsertProgress(ctx, pushProgress); err != nil {
		return err
	}
	if err := e.remote.InsertReviewLogs(ctx, pushLogs); err != nil {
		return err
	}
	if pushSettings != nil {
		if err := e.remote.UpsertSettings(ctx, pushSettings); err != nil {
			return err
		}
	}

	for _, card := range pushedLoc {
		card.MarkSynced(passTime)
		if err := e.store.PutCard(ctx, card); err != nil {
			return err
		}
	}
	if err := e.store.MarkReviewLogsSynced(ctx, pushedLogIDs, passTime); err != nil {
		return err
	}

	e.logger.Info("merge complete", "user", e.userID,
		"pushed_cards", len(pushCards),
		"pushed_progress", len(pushProgress),
		"pushed_logs", len(pushLogs))
	return nil
}

// mergeProgress reconciles review states by card cloud id, independent
// of how the card content merge went. A card and its progress can merge
// from different winning sides in the same pass.
func (e *Engine) mergeProgress(ctx context.Context, snapshot *remote.Snapshot, byCloud, byLocal map[string]*domain.Card) ([]remote.Progress, error) {
	states, err := e.store.ListReviewStates(ctx)
	if err != nil {
		return nil, err
	}
	stateByCard := make(map[string]*domain.ReviewState, len(states))
	for _, state := range states {
		stateByCard[state.CardID] = state
	}

	var push []remote.Progress
	remoteSeen := make(map[string]bool, len(snapshot.Progress))

	for _, wp := range snapshot.Progress {
		card, ok := byCloud[wp.CardCloudID]
		if !ok {
			continue
		}
		remoteSeen[wp.CardCloudID] = true
		state, ok := stateByCard[card.ID]
		if !ok {
			state = domain.NewReviewState(card.ID)
			remote.ApplyProgress(state, wp)
			if err := e.store.PutReviewState(ctx, state); err != nil {
				return nil, err
			}
			stateByCard[card.ID] = state
			continue
		}
		switch domain.CompareByUpdatedAt(state.UpdatedAt, wp.UpdatedAt) {
		case domain.RemoteWins:
			remote.ApplyProgress(state, wp)
			if err := e.store.PutReviewState(ctx, state); err != nil {
				return nil, err
			}
		case domain.LocalWins:
			push = append(push, remote.ProgressToWire(state, wp.CardCloudID))
		case domain.Equal:
		}
	}

	for _, state := range states {
		card, ok := byLocal[state.CardID]
		if !ok || card.CloudID == "" || remoteSeen[card.CloudID] {
			continue
		}
		push = append(push, remote.ProgressToWire(state, card.CloudID))
	}

	return push, nil
}

// mergeLogs unions review logs by client event id. Remote-only logs are
// materialized locally with zeroed box positions; local-only logs are
// pushed.
func (e *Engine) mergeLogs(ctx context.Context, snapshot *remote.Snapshot, byCloud, byLocal map[string]*domain.Card, passTime time.Time) ([]remote.ReviewLog, []string, error) {
	remoteEvents := make(map[string]bool, len(snapshot.Logs))
	for _, wl := range snapshot.Logs {
		remoteEvents[wl.ClientEventID] = true
	}

	for _, wl := range snapshot.Logs {
		card, ok := byCloud[wl.CardCloudID]
		if !ok {
			continue
		}
		_, err := e.store.GetReviewLogByEventID(ctx, wl.ClientEventID)
		if err == nil {
			continue
		}
		log := remote.LogFromWire(wl, id.ReviewLog(), card.ID, passTime)
		if err := e.store.PutReviewLog(ctx, log); err != nil {
			return nil, nil, err
		}
	}

	unsynced, err := e.store.ListUnsyncedReviewLogs(ctx)
	if err != nil {
		return nil, nil, err
	}
	var (
		push    []remote.ReviewLog
		pushIDs []string
	)
	for _, log := range unsynced {
		if remoteEvents[log.ClientEventID] {
			// Already on the remote; just stamp it.
			pushIDs = append(pushIDs, log.ID)
			continue
		}
		card, ok := byLocal[log.CardID]
		if !ok || card.CloudID == "" {
			continue
		}
		push = append(push, remote.LogToWire(log, card.CloudID))
		pushIDs = append(pushIDs, log.ID)
	}
	return push, pushIDs, nil
}

// mergeSettings resolves the single settings record last-write-wins.
// Returns the wire settings to push, or nil when nothing goes up.
func (e *Engine) mergeSettings(ctx context.Context, snapshot *remote.Snapshot) (*remote.Settings, error) {
	local, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if snapshot.Settings == nil {
		if local.UpdatedAt.IsZero() {
			return nil, nil
		}
		return remote.SettingsToWire(local), nil
	}

	switch domain.CompareByUpdatedAt(local.UpdatedAt, snapshot.Settings.UpdatedAt) {
	case domain.RemoteWins:
		if err := e.store.PutSettings(ctx, remote.SettingsFromWire(snapshot.Settings)); err != nil {
			return nil, err
		}
		return nil, nil
	case domain.LocalWins:
		return remote.SettingsToWire(local), nil
	default:
		return nil, nil
	}
}

func (e *Engine) ensureState(ctx context.Context, cardID string) error {
	_, err := e.store.GetReviewState(ctx, cardID)
	if err == nil {
		return nil
	}
	return e.store.PutReviewState(ctx, domain.NewReviewState(cardID))
}


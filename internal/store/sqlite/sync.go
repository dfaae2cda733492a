package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cardboxapp/cardbox/internal/remote"
)

// FetchSnapshot loads the full server-side state for one user.
func (s *Store) FetchSnapshot(ctx context.Context, userID string) (*remote.Snapshot, error) {
	snapshot := &remote.Snapshot{}

	cards, err := s.fetchCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch cards: %w", err)
	}
	snapshot.Cards = cards

	progress, err := s.fetchProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	snapshot.Progress = progress

	logs, err := s.fetchLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}
	snapshot.Logs = logs

	settings, err := s.fetchSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	snapshot.Settings = settings

	return snapshot, nil
}

func (s *Store) fetchCards(ctx context.Context, userID string) ([]remote.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cloud_id, front, back, hint, tags, source, source_pack_id, source_public_id,
		       created_at, updated_at
		FROM cards WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []remote.Card
	for rows.Next() {
		var (
			c         remote.Card
			tagsJSON  string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&c.CloudID, &c.Front, &c.Back, &c.Hint, &tagsJSON,
			&c.Source, &c.SourcePackID, &c.SourcePublicID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for card %s: %w", c.CloudID, err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *Store) fetchProgress(ctx context.Context, userID string) ([]remote.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_cloud_id, box, due_date, last_reviewed_at, is_learned, learned_at, updated_at
		FROM progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []remote.Progress
	for rows.Next() {
		var (
			p            remote.Progress
			lastReviewed sql.NullString
			isLearned    int
			learnedAt    sql.NullString
			updatedAt    string
		)
		if err := rows.Scan(&p.CardCloudID, &p.Box, &p.DueDate, &lastReviewed,
			&isLearned, &learnedAt, &updatedAt); err != nil {
			return nil, err
		}
		p.IsLearned = isLearned != 0
		if p.LastReviewedAt, err = parseNullableTime(lastReviewed); err != nil {
			return nil, err
		}
		if p.LearnedAt, err = parseNullableTime(learnedAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func (s *Store) fetchLogs(ctx context.Context, userID string) ([]remote.ReviewLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_event_id, device_id, card_cloud_id, result, was_reversed, created_at
		FROM review_logs WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []remote.ReviewLog
	for rows.Next() {
		var (
			l           remote.ReviewLog
			wasReversed int
			createdAt   string
		)
		if err := rows.Scan(&l.ClientEventID, &l.DeviceID, &l.CardCloudID,
			&l.Result, &wasReversed, &createdAt); err != nil {
			return nil, err
		}
		l.WasReversed = wasReversed != 0
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) fetchSettings(ctx context.Context, userID string) (*remote.Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT box1_target_size, box_interval_days, learned_review_interval_days,
		       reverse_probability, updated_at
		FROM settings WHERE user_id = ?`, userID)

	var (
		st            remote.Settings
		intervalsJSON string
		updatedAt     string
	)
	err := row.Scan(&st.Box1TargetSize, &intervalsJSON, &st.LearnedReviewIntervalDays,
		&st.ReverseProbability, &updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(intervalsJSON), &st.BoxIntervalDays); err != nil {
		return nil, fmt.Errorf("decode box intervals: %w", err)
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertCards writes a batch of cards for one user. Each row only wins
// when it is strictly newer than the stored copy, so stale re-pushes
// from lagging devices cannot roll content back.
func (s *Store) UpsertCards(ctx context.Context, userID string, cards []remote.Card) error {
	if len(cards) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range cards {
		newer, err := rowIsNewer(ctx, tx,
			`SELECT updated_at FROM cards WHERE user_id = ? AND cloud_id = ?`,
			c.UpdatedAt, userID, c.CloudID)
		if err != nil {
			return err
		}
		if !newer {
			continue
		}

		tagsJSON, err := json.Marshal(c.Tags)
		if err != nil {
			return fmt.Errorf("encode tags for card %s: %w", c.CloudID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cards (user_id, cloud_id, front, back, hint, tags, source,
			                   source_pack_id, source_public_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, cloud_id) DO UPDATE SET
				front = excluded.front,
				back = excluded.back,
				hint = excluded.hint,
				tags = excluded.tags,
				source = excluded.source,
				source_pack_id = excluded.source_pack_id,
				source_public_id = excluded.source_public_id,
				updated_at = excluded.updated_at`,
			userID, c.CloudID, c.Front, c.Back, c.Hint, string(tagsJSON), c.Source,
			c.SourcePackID, c.SourcePublicID, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertProgress writes a batch of progress rows for one user with the
// same strictly-newer rule as UpsertCards.
func (s *Store) UpsertProgress(ctx context.Context, userID string, entries []remote.Progress) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range entries {
		newer, err := rowIsNewer(ctx, tx,
			`SELECT updated_at FROM progress WHERE user_id = ? AND card_cloud_id = ?`,
			p.UpdatedAt, userID, p.CardCloudID)
		if err != nil {
			return err
		}
		if !newer {
			continue
		}

		isLearned := 0
		if p.IsLearned {
			isLearned = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO progress (user_id, card_cloud_id, box, due_date, last_reviewed_at,
			                      is_learned, learned_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, card_cloud_id) DO UPDATE SET
				box = excluded.box,
				due_date = excluded.due_date,
				last_reviewed_at = excluded.last_reviewed_at,
				is_learned = excluded.is_learned,
				learned_at = excluded.learned_at,
				updated_at = excluded.updated_at`,
			userID, p.CardCloudID, p.Box, p.DueDate, nullTimeString(p.LastReviewedAt),
			isLearned, nullTimeString(p.LearnedAt), formatTime(p.UpdatedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertSettings writes one user's settings when strictly newer than the
// stored copy.
func (s *Store) UpsertSettings(ctx context.Context, userID string, settings *remote.Settings) error {
	if settings == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	newer, err := rowIsNewer(ctx, tx,
		`SELECT updated_at FROM settings WHERE user_id = ?`,
		settings.UpdatedAt, userID)
	if err != nil {
		return err
	}
	if !newer {
		return tx.Commit()
	}

	intervalsJSON, err := json.Marshal(settings.BoxIntervalDays)
	if err != nil {
		return fmt.Errorf("encode box intervals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (user_id, box1_target_size, box_interval_days,
		                      learned_review_interval_days, reverse_probability, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			box1_target_size = excluded.box1_target_size,
			box_interval_days = excluded.box_interval_days,
			learned_review_interval_days = excluded.learned_review_interval_days,
			reverse_probability = excluded.reverse_probability,
			updated_at = excluded.updated_at`,
		userID, settings.Box1TargetSize, string(intervalsJSON),
		settings.LearnedReviewIntervalDays, settings.ReverseProbability,
		formatTime(settings.UpdatedAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertReviewLogs appends a batch of review logs. Rows whose
// (user, client event id) already exist are skipped, so devices can
// re-push a batch after a failed pass without duplicating history.
func (s *Store) InsertReviewLogs(ctx context.Context, userID string, logs []remote.ReviewLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range logs {
		wasReversed := 0
		if l.WasReversed {
			wasReversed = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO review_logs (user_id, client_event_id, device_id, card_cloud_id,
			                         result, was_reversed, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, client_event_id) DO NOTHING`,
			userID, l.ClientEventID, l.DeviceID, l.CardCloudID,
			l.Result, wasReversed, formatTime(l.CreatedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteCards removes cards and their progress rows. Review logs are
// kept; they are history, not state. Unknown ids are ignored.
func (s *Store) DeleteCards(ctx context.Context, userID string, cloudIDs []string) error {
	if len(cloudIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, cloudID := range cloudIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cards WHERE user_id = ? AND cloud_id = ?`, userID, cloudID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM progress WHERE user_id = ? AND card_cloud_id = ?`, userID, cloudID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// rowIsNewer reports whether candidate is strictly newer than the
// stored row's updated_at. A missing row is always older.
func rowIsNewer(ctx context.Context, tx *sql.Tx, query string, candidate time.Time, args ...any) (bool, error) {
	var stored string
	err := tx.QueryRowContext(ctx, query, args...).Scan(&stored)
	if stderrors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	current, err := parseTime(stored)
	if err != nil {
		return false, err
	}
	return candidate.After(current), nil
}

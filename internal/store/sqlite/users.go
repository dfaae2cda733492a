package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, email, display_name, password_hash, created_at, updated_at, last_login_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User

	var (
		createdAt   string
		updatedAt   string
		lastLoginAt sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt, err = parseNullableTime(lastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. The email is stored as given but
// matched case-insensitively; a duplicate returns ErrAlreadyExists.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash,
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt), nullTimeString(user.LastLoginAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("email already registered")
		}
		return err
	}
	return nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)

	user, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), userID)
	return err
}

// CreateAuthSession stores a new refresh-token session.
func (s *Store) CreateAuthSession(ctx context.Context, sess *domain.AuthSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, refresh_token_hash, device_name, created_at, expires_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.RefreshTokenHash, sess.DeviceName,
		formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt), formatTime(sess.LastUsedAt),
	)
	return err
}

// GetAuthSessionByTokenHash looks up a session by its refresh token hash.
func (s *Store) GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token_hash, device_name, created_at, expires_at, last_used_at
		FROM auth_sessions WHERE refresh_token_hash = ?`, tokenHash)

	var (
		sess       domain.AuthSession
		createdAt  string
		expiresAt  string
		lastUsedAt string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.DeviceName,
		&createdAt, &expiresAt, &lastUsedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}

	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if sess.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// RotateAuthSession swaps a session's refresh token hash and extends its
// lifetime, in one statement so a torn rotation cannot leave two valid
// tokens.
func (s *Store) RotateAuthSession(ctx context.Context, sessionID, newTokenHash string, expiresAt, usedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auth_sessions SET refresh_token_hash = ?, expires_at = ?, last_used_at = ?
		WHERE id = ?`,
		newTokenHash, formatTime(expiresAt), formatTime(usedAt), sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("session not found")
	}
	return nil
}

// DeleteAuthSession revokes a session. Deleting an unknown session is a
// no-op.
func (s *Store) DeleteAuthSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID)
	return err
}

// DeleteExpiredAuthSessions prunes sessions whose refresh tokens can no
// longer be exchanged. Returns the number of sessions removed.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package domain

import "time"

// User is a registered account on the sync server. PasswordHash holds an
// argon2id encoded hash, never the password itself.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// AuthSession is one device's refresh-token session on the server. The
// refresh token itself is never stored, only its hash.
type AuthSession struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"-"`
	DeviceName       string    `json:"device_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
}

// IsExpired reports whether the session's refresh token can no longer be
// exchanged.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

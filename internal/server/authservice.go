package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardboxapp/cardbox/internal/auth"
	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/errors"
	"github.com/cardboxapp/cardbox/internal/id"
	"github.com/cardboxapp/cardbox/internal/store/sqlite"
	"github.com/cardboxapp/cardbox/internal/validation"
)

// AuthService implements registration, login and token lifecycle on top
// of the server store.
type AuthService struct {
	store     *sqlite.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(st *sqlite.Store, tokens *auth.TokenService, v *validation.Validator, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:     st,
		tokens:    tokens,
		validator: v,
		logger:    logger,
	}
}

// RegisterRequest holds the fields for a new account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"max=100"`
	DeviceName  string `json:"device_name" validate:"max=100"`
}

// LoginRequest holds the credentials for a sign-in.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,max=1024"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// AuthResult carries the tokens issued to a device after a successful
// register, login or refresh.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int
}

// Register creates a new account and signs the device in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "hash password")
	}

	now := time.Now()
	user := &domain.User{
		ID:           id.User(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user", user.ID)
	return s.issueTokens(ctx, user, req.DeviceName)
}

// Login verifies credentials and signs the device in. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials("invalid email or password")
		}
		return nil, err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "verify password")
	}
	if !ok {
		return nil, errors.InvalidCredentials("invalid email or password")
	}

	if err := s.store.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record login time", "user", user.ID, "error", err)
	}

	s.logger.Info("user logged in", "user", user.ID)
	return s.issueTokens(ctx, user, req.DeviceName)
}

// Refresh exchanges a refresh token for a new token pair, rotating the
// stored hash so each refresh token is single-use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	sess, err := s.store.GetAuthSessionByTokenHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthorized("invalid refresh token")
		}
		return nil, err
	}

	now := time.Now()
	if sess.IsExpired(now) {
		return nil, errors.TokenExpired("refresh token expired")
	}

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token")
	}

	newRefresh, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.tokens.RefreshTokenDuration())
	if err := s.store.RotateAuthSession(ctx, sess.ID, auth.HashRefreshToken(newRefresh), expiresAt, now); err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		SessionID:    sess.ID,
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
	}, nil
}

// Logout revokes a session. Revoking an unknown session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.store.DeleteAuthSession(ctx, sessionID)
}

// VerifyAccessToken validates a bearer token and loads its user.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, errors.Unauthorized("invalid or expired token")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, errors.Unauthorized("invalid or expired token")
	}
	return user, claims, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User, deviceName string) (*AuthResult, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &domain.AuthSession{
		ID:               id.Session(),
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		DeviceName:       deviceName,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.tokens.RefreshTokenDuration()),
		LastUsedAt:       now,
	}
	if err := s.store.CreateAuthSession(ctx, sess); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sess.ID,
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
	}, nil
}

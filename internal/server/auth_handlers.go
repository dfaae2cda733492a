package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register new account",
		Description: "Creates an account and signs the device in.",
		Tags:        []string{"Authentication"},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Log in",
		Description: "Authenticates a user and returns access and refresh tokens.",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for a new token pair.",
		Tags:        []string{"Authentication"},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Log out",
		Description: "Revokes the specified session.",
		Tags:        []string{"Authentication"},
	}, s.handleLogout)
}

// === DTOs ===

// RegisterBody is the request body for account registration.
type RegisterBody struct {
	Email       string `json:"email" doc:"Email address"`
	Password    string `json:"password" doc:"Password (min 8 characters)"`
	DisplayName string `json:"display_name,omitempty" doc:"Display name"`
	DeviceName  string `json:"device_name,omitempty" doc:"Human-readable device name"`
}

// RegisterInput wraps the register request for huma.
type RegisterInput struct {
	Body RegisterBody
}

// LoginBody is the request body for login.
type LoginBody struct {
	Email      string `json:"email" doc:"Email address"`
	Password   string `json:"password" doc:"Password"`
	DeviceName string `json:"device_name,omitempty" doc:"Human-readable device name"`
}

// LoginInput wraps the login request for huma.
type LoginInput struct {
	Body LoginBody
}

// RefreshBody is the request body for token refresh.
type RefreshBody struct {
	RefreshToken string `json:"refresh_token" doc:"Refresh token"`
}

// RefreshInput wraps the refresh request for huma.
type RefreshInput struct {
	Body RefreshBody
}

// LogoutBody is the request body for logout.
type LogoutBody struct {
	SessionID string `json:"session_id" doc:"Session to revoke"`
}

// LogoutInput wraps the logout request for huma.
type LogoutInput struct {
	Authorization string `header:"Authorization"`
	Body          LogoutBody
}

// UserResponse is user information in auth responses.
type UserResponse struct {
	ID          string    `json:"id" doc:"User id"`
	Email       string    `json:"email" doc:"Email address"`
	DisplayName string    `json:"display_name" doc:"Display name"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation timestamp"`
}

// AuthResponse carries tokens and user info.
type AuthResponse struct {
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Refresh token"`
	SessionID    string       `json:"session_id" doc:"Session identifier"`
	TokenType    string       `json:"token_type" doc:"Token type (Bearer)"`
	ExpiresIn    int          `json:"expires_in" doc:"Access token expiry in seconds"`
	User         UserResponse `json:"user" doc:"Authenticated user"`
}

// AuthOutput wraps the auth response for huma.
type AuthOutput struct {
	Body AuthResponse
}

// MessageOutput wraps a simple message response.
type MessageOutput struct {
	Body struct {
		Message string `json:"message" doc:"Status message"`
	}
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	result, err := s.authService.Register(ctx, RegisterRequest{
		Email:       input.Body.Email,
		Password:    input.Body.Password,
		DisplayName: input.Body.DisplayName,
		DeviceName:  input.Body.DeviceName,
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResult(result)}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	result, err := s.authService.Login(ctx, LoginRequest{
		Email:      input.Body.Email,
		Password:   input.Body.Password,
		DeviceName: input.Body.DeviceName,
	})
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResult(result)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	result, err := s.authService.Refresh(ctx, input.Body.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResult(result)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *LogoutInput) (*MessageOutput, error) {
	if _, err := s.authenticateRequest(ctx, input.Authorization); err != nil {
		return nil, err
	}
	if err := s.authService.Logout(ctx, input.Body.SessionID); err != nil {
		return nil, err
	}

	out := &MessageOutput{}
	out.Body.Message = "session revoked"
	return out, nil
}

func mapAuthResult(result *AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		SessionID:    result.SessionID,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		User: UserResponse{
			ID:          result.User.ID,
			Email:       result.User.Email,
			DisplayName: result.User.DisplayName,
			CreatedAt:   result.User.CreatedAt,
		},
	}
}

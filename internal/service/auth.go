package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/auth"
	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/id"
	"github.com/sentilabel/sentilabel-server/internal/store"
	"github.com/sentilabel/sentilabel-server/internal/validation"
)

// validate is the shared request validator for all services.
var validate = validation.New()

// AuthService handles setup, registration, login and token verification.
// Session storage is delegated to SessionService.
type AuthService struct {
	store             store.Store
	tokenService      *auth.TokenService
	sessionService    *SessionService
	allowRegistration bool
	logger            *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	allowRegistration bool,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:             store,
		tokenService:      tokenService,
		sessionService:    sessionService,
		allowRegistration: allowRegistration,
		logger:            logger,
	}
}

// SetupRequest contains the first admin account.
type SetupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// RegisterRequest contains a self-service labeler account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// IsSetupRequired reports whether no account exists yet.
func (s *AuthService) IsSetupRequired(ctx context.Context) (bool, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n == 0, nil
}

// Setup creates the first admin. It can only be used before any user exists.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest, client ClientInfo) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	setupRequired, err := s.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !setupRequired {
		return nil, domainerrors.AlreadyConfigured("server is already configured")
	}

	user, err := s.createUser(ctx, req.Email, req.Password, req.DisplayName, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	resp, err := s.sessionService.CreateSession(ctx, user, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("server setup complete", "user_id", user.ID, "email", user.Email)
	return &AuthResponse{User: user, SessionResponse: *resp}, nil
}

// Register creates a labeler account when open registration is enabled and
// signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, client ClientInfo) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	if !s.allowRegistration {
		return nil, domainerrors.Forbidden("registration is not open")
	}

	setupRequired, err := s.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if setupRequired {
		return nil, domainerrors.Conflict("server setup has not been completed")
	}

	user, err := s.createUser(ctx, req.Email, req.Password, req.DisplayName, domain.RoleLabeler)
	if err != nil {
		return nil, err
	}

	resp, err := s.sessionService.CreateSession(ctx, user, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return &AuthResponse{User: user, SessionResponse: *resp}, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, displayName string, role domain.Role) (*domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		Record:       domain.Record{ID: userID, CreatedAt: now, UpdatedAt: now},
		Email:        domain.NormalizeEmail(email),
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         role,
		LastLoginAt:  &now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and creates a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Don't leak whether email exists
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	now := time.Now()
	if err := s.store.TouchUserLogin(ctx, user.ID, now); err != nil {
		// Log but don't fail login
		s.logger.Warn("failed to update last login time", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	resp, err := s.sessionService.CreateSession(ctx, user, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &AuthResponse{User: user, SessionResponse: *resp}, nil
}

// RefreshTokens rotates the refresh token and returns fresh tokens.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken == "" {
		return nil, domainerrors.Validation("refresh_token is required")
	}

	resp, user, err := s.sessionService.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *resp}, nil
}

// Logout revokes a session, invalidating its refresh token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionService.DeleteSession(ctx, sessionID)
}

// VerifyAccessToken validates a token and returns the user it was minted for.
// A token whose session was revoked is rejected.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	if _, err := s.store.GetSession(ctx, claims.SessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, nil, domainerrors.Unauthorized("session revoked")
		}
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, domainerrors.Unauthorized("user not found")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}

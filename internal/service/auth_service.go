package service

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/config"
	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/events"
	"github.com/spec-kit/registration-service/internal/repository"
	apperrors "github.com/spec-kit/registration-service/pkg/util"
)

// TokenPair carries both freshly issued tokens with their expiries.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService coordinates registration and session flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	limiter    *LoginLimiter
	dispatcher events.Dispatcher
	bcryptCost int
	resetTTL   time.Duration
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	TokenManager      *auth.TokenManager
	Limiter           *LoginLimiter
	Dispatcher        events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   deps.TokenManager,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.BcryptCost,
		resetTTL:   cfg.PasswordResetTTL(),
	}
}

// Register creates a new account. Uniqueness conflicts surface as
// DuplicateUser; any other storage failure stays generic.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	if err := validateRegistration(username, password, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperrors.NewDuplicateUser()
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username: user.Username,
		Email:    user.Email,
	})
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair.
// Unknown username and wrong password return the same failure so
// usernames cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *TokenPair, error) {
	if s.limiter.Blocked(ctx, username) {
		return nil, nil, apperrors.NewTooManyAttempts()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.limiter.RecordFailure(ctx, username)
			return nil, nil, apperrors.NewInvalidCredentials()
		}
		return nil, nil, apperrors.NewStorageUnavailable(err)
	}

	if !auth.VerifyPassword(user.HashedPassword, password) {
		s.limiter.RecordFailure(ctx, username)
		return nil, nil, apperrors.NewInvalidCredentials()
	}

	if !user.IsActive {
		return nil, nil, apperrors.NewInactiveAccount()
	}

	s.limiter.Reset(ctx, username)

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, pair, nil
}

// Refresh mints a new access token for an already resolved refresh
// session. The refresh token itself is left untouched.
func (s *AuthService) Refresh(user *domain.User) (string, time.Time, error) {
	token, exp, err := s.tokenMgr.IssueAccessToken(user)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}

// ChangePassword verifies the current password before persisting the
// new hash. Previously issued tokens remain valid until expiry.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error {
	if !auth.VerifyPassword(user.HashedPassword, currentPassword) {
		return apperrors.NewValidationError("current password is incorrect", nil)
	}
	if len(newPassword) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}

	s.publish(ctx, events.EventPasswordChanged, user.ID, nil)
	return nil
}

// Deactivate flips the account inactive. Tokens already issued stay
// valid until their natural expiry.
func (s *AuthService) Deactivate(ctx context.Context, user *domain.User) error {
	if err := s.users.SetActive(ctx, user.ID, false); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}

	s.publish(ctx, events.EventAccountDeactivated, user.ID, events.AccountDeactivatedPayload{
		Username: user.Username,
	})
	return nil
}

// RequestPasswordReset persists a one-time reset token and hands it to
// the notification pipeline. The token never travels back to the
// caller, and unknown usernames are indistinguishable from known ones.
func (s *AuthService) RequestPasswordReset(ctx context.Context, username string) error {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.NewStorageUnavailable(err)
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}

	s.publish(ctx, events.EventPasswordResetRequested, user.ID, events.PasswordResetRequestedPayload{
		Email:     user.Email,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
	return nil
}

// ConfirmPasswordReset validates the reset token and updates the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("invalid reset token", nil)
		}
		return apperrors.NewStorageUnavailable(err)
	}
	if token.UsedAt != nil || time.Now().After(token.ExpiresAt) {
		return apperrors.NewValidationError("reset token expired or used", nil)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}

	s.publish(ctx, events.EventPasswordChanged, token.UserID, nil)
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueTokenPair(user *domain.User) (*TokenPair, error) {
	accessToken, accessExp, err := s.tokenMgr.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokenMgr.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID int64, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func validateRegistration(username, password, email string) error {
	if len(username) < 3 || len(username) > 30 {
		return apperrors.NewValidationError("username must be between 3 and 30 characters", nil)
	}
	if len(password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidationError("invalid email address", nil)
	}
	return nil
}

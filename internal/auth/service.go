package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/mail"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
)

var (
	ErrInvalidCredentials  = apperr.New(apperr.KindUnauthorized, "invalid username or password")
	ErrInactiveUser        = apperr.New(apperr.KindUnauthorized, "user account is disabled")
	ErrInvalidRefreshToken = apperr.New(apperr.KindUnauthorized, "invalid or expired refresh token")
	ErrInvalidResetToken   = apperr.New(apperr.KindInvalidInput, "invalid or expired reset token")
)

type Service struct {
	repo        *Repository
	users       user.Service
	tokens      *TokenIssuer
	mailer      mail.Sender
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cfg         Config
	frontendURL string
}

func NewService(repo *Repository, users user.Service, tokens *TokenIssuer, mailer mail.Sender, m *metrics.Metrics, logger *slog.Logger, cfg Config, frontendURL string) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Register creates a regular user account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	u, err := s.users.Create(ctx, user.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordUserRegistered(ctx)

	resp, err := s.generateTokenPair(ctx, u)
	if err != nil {
		return nil, err
	}
	resp.User = u
	return resp, nil
}

// Login authenticates by username or email and records the login time.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.users.GetByLogin(ctx, req.Username)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.users.RecordLogin(ctx, u.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", u.ID, "error", err)
	}

	resp, err := s.generateTokenPair(ctx, u)
	if err != nil {
		return nil, err
	}
	resp.User = u
	return resp, nil
}

// RefreshAccessToken rotates a refresh token: the presented token is
// consumed and a new pair is issued.
func (s *Service) RefreshAccessToken(ctx context.Context, raw string) (*AuthResponse, error) {
	hash := HashToken(raw)
	stored, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	removed, err := s.repo.DeleteRefreshToken(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.users.Get(ctx, stored.UserID)
	if err != nil || !u.IsActive {
		return nil, ErrInvalidRefreshToken
	}
	return s.generateTokenPair(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	_, err := s.repo.DeleteRefreshToken(ctx, HashToken(raw))
	return err
}

// ForgotPassword mails a reset link when email belongs to an active account.
// It succeeds either way so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByLogin(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !u.IsActive {
		return nil
	}

	raw, err := GenerateOpaqueToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.PasswordResetTTL)
	if err := s.repo.CreateResetToken(ctx, u.ID, HashToken(raw), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.frontendURL + "/reset-password/" + raw
	msg := mail.Message{
		To:      u.Email,
		Subject: "Password reset",
		Text: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n",
			u.Username, s.cfg.PasswordResetTTL, link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email", "user_id", u.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	stored, err := s.repo.GetResetToken(ctx, HashToken(req.Token))
	if err != nil {
		if isNoRows(err) {
			return ErrInvalidResetToken
		}
		return err
	}

	u, err := s.users.Get(ctx, stored.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ErrInvalidResetToken
		}
		return err
	}
	if !strings.EqualFold(u.Email, strings.TrimSpace(req.Email)) {
		return ErrInvalidResetToken
	}

	hashed, err := user.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.ConsumeResetToken(ctx, stored.ID, u.ID, hashed); err != nil {
		if errors.Is(err, errTokenConsumed) {
			return ErrInvalidResetToken
		}
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", u.ID)
	return nil
}

// PurgeExpired deletes stale refresh and reset tokens.
func (s *Service) PurgeExpired(ctx context.Context) error {
	return s.repo.DeleteExpiredTokens(ctx)
}

func (s *Service) generateTokenPair(ctx context.Context, u *user.User) (*AuthResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(u)
	if err != nil {
		return nil, err
	}

	refreshToken, err := GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.cfg.RefreshTokenTTL)
	if err := s.repo.CreateRefreshToken(ctx, u.ID, HashToken(refreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		Access:  accessToken,
		Refresh: refreshToken,
	}, nil
}

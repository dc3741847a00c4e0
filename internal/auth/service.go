// Package auth はサインイン、セッション管理、パスワード再設定を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge      int // セッション有効期間（秒）
	RecoveryTokenTTL   time.Duration
	RecoverySessionTTL time.Duration
	BaseURL            string // 再設定リンクの生成に使用
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokenRepo   repository.RecoveryTokenRepository
	notifier    Notifier
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.RecoveryTokenRepository,
	notifier Notifier,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		notifier:    notifier,
		config:      config,
	}
}

// SignIn はメールアドレスとパスワードを検証し、standardセッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		VerifyPassword(string(dummyHash), password)
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID, model.SessionKindStandard,
		time.Duration(s.config.SessionMaxAge)*time.Second)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))
	return session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// CurrentSession はセッションIDに対応する有効なセッションを返す。
// 空のID、不明なID、期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// Register はアカウントを作成する。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address: %q", email)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// RequestRecovery はパスワード再設定リンクを発行する。
// 未登録のメールアドレスでもエラーにせず、登録有無を応答から判別できないようにする。
func (s *Service) RequestRecovery(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Info("recovery requested for unknown email")
		return nil
	}

	raw, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate recovery token: %w", err)
	}

	now := time.Now()
	token := &model.RecoveryToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(s.config.RecoveryTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to store recovery token: %w", err)
	}

	link := s.config.BaseURL + "/auth/verify?token=" + url.QueryEscape(raw)
	if err := s.notifier.SendRecoveryLink(ctx, user.Email, link); err != nil {
		return fmt.Errorf("failed to send recovery link: %w", err)
	}
	return nil
}

// VerifyRecovery は再設定トークンを消費し、recoveryセッションを発行する。
// トークンが期限切れ・使用済み・不明の場合はErrRecoveryExpiredを返す。
func (s *Service) VerifyRecovery(ctx context.Context, rawToken string) (*model.Session, error) {
	if rawToken == "" {
		return nil, ErrRecoveryExpired
	}

	token, err := s.tokenRepo.Consume(ctx, HashToken(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to consume recovery token: %w", err)
	}
	if token == nil {
		return nil, ErrRecoveryExpired
	}

	session, err := s.createSession(ctx, token.UserID, model.SessionKindRecovery, s.config.RecoverySessionTTL)
	if err != nil {
		return nil, err
	}

	slog.Info("recovery session established", slog.String("user_id", token.UserID))
	return session, nil
}

// UpdateCredential はセッションのユーザーのパスワードを更新し、
// そのユーザーの全セッション（このセッションを含む）を破棄する。
func (s *Service) UpdateCredential(ctx context.Context, sessionID, newPassword string) error {
	session, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionExpired
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, session.UserID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, session.UserID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("credential updated",
		slog.String("user_id", session.UserID),
		slog.String("session_kind", string(session.Kind)),
	)
	return nil
}

// RevokeSession はセッションを破棄する。エラーはログに記録するのみ。
func (s *Service) RevokeSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Error("failed to revoke session", slog.String("error", err.Error()))
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, kind model.SessionKind, ttl time.Duration) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// HashToken はトークンのSHA-256ハッシュを16進文字列で返す。
// DBには平文ではなくこの値のみを保存する。
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateToken は暗号的に安全なランダムトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

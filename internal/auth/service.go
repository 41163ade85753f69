// Package auth はメール/パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/rxnote/internal/model"
	"github.com/hitoshi/rxnote/internal/repository"
)

// SignUpAttributes は登録時にプロフィールへ引き継ぐ属性。
type SignUpAttributes struct {
	FullName string
	Role     model.Role
}

// AuthData は認証操作の結果（Identityと、取得できた場合のSession）。
// Sessionがnilの場合は「アカウントは存在するがセッション未取得」を表す。
type AuthData struct {
	Identity *model.Identity
	Session  *model.Session
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // bcryptコスト。0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accountRepo repository.AccountRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		accountRepo: accountRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// SignUp はアカウントを作成し、セッションを発行する。
// メールアドレスが登録済みの場合はALREADY_REGISTEREDを返す（呼び出し側が
// ログインフォールバックを判断する）。プロフィール作成はベストエフォートで、
// 失敗してもアカウント作成は成功として扱う（初回サインイン時のget-or-createで自己修復される）。
func (s *Service) SignUp(ctx context.Context, email, password string, attrs SignUpAttributes) (*AuthData, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	if attrs.Role != "" && !attrs.Role.IsValid() {
		return nil, model.NewInvalidRoleError(string(attrs.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	// プロフィールをベストエフォートで作成する。
	role := attrs.Role
	if role == "" {
		role = model.RolePatient
	}
	profile := &model.Profile{
		ID:        account.ID,
		Email:     account.Email,
		FullName:  attrs.FullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profileRepo.Insert(ctx, profile); err != nil && !model.IsProfileAlreadyExists(err) {
		slog.Error("failed to create profile at signup",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		// アカウントは作成済みのため、セッションなしで成功を返す。
		slog.Warn("signup succeeded but session creation failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return &AuthData{Identity: s.identityOf(account, nil)}, nil
	}

	slog.Info("new account created",
		slog.String("account_id", account.ID),
		slog.String("role", string(role)),
	)

	return &AuthData{Identity: s.identityOf(account, session), Session: session}, nil
}

// SignIn はメールアドレスとパスワードでセッションを発行する。
// アカウント未存在とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*AuthData, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("account signed in", slog.String("account_id", account.ID))

	return &AuthData{Identity: s.identityOf(account, session), Session: session}, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("account signed out", slog.String("session_id", sessionID))
	return nil
}

// SignOutAll は指定アカウントの全セッションを破棄する。
// 端末の紛失や共有端末でのサインアウト漏れに対し、
// 全デバイスからの一括サインアウトを提供する。
func (s *Service) SignOutAll(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account ID is required")
	}

	if err := s.sessionRepo.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	slog.Info("all sessions revoked", slog.String("account_id", accountID))
	return nil
}

// GetSession はセッションIDから現在のIdentityを取得する。
// セッションが存在しない・期限切れの場合はnilを返す（エラーではない）。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	account, err := s.accountRepo.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}

	return s.identityOf(account, session), nil
}

// identityOf はアカウントとセッションからIdentityビューを構築する。
func (s *Service) identityOf(account *model.Account, session *model.Session) *model.Identity {
	identity := &model.Identity{
		ID:    account.ID,
		Email: account.Email,
	}
	if session != nil {
		identity.IssuedAt = session.CreatedAt
		identity.ExpiresAt = session.ExpiresAt
	}
	return identity
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, accountID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

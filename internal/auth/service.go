// Package auth はOAuth認証フロー、ホワイトリスト判定、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gatekeeper/internal/metrics"
	"github.com/hitoshi/gatekeeper/internal/model"
	"github.com/hitoshi/gatekeeper/internal/repository"
	"github.com/hitoshi/gatekeeper/internal/security"
)

// ErrProviderFailed はOAuthプロバイダーとのやり取り（コード交換・ユーザー情報取得）の失敗を表す。
var ErrProviderFailed = errors.New("oauth provider failed")

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*model.Identity, error)
}

// WhitelistChecker はメールアドレスのホワイトリスト照合を行う。
type WhitelistChecker interface {
	IsWhitelisted(ctx context.Context, email string) (bool, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL   time.Duration // セッションの固定有効期間
	StoreTimeout time.Duration // セッションストア呼び出しの上限時間。0の場合は呼び出し元のコンテキストに従う
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	whitelist   WhitelistChecker
	sessionRepo repository.SessionRepository
	sanitizer   *security.ProfileSanitizer
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	oauth OAuthProvider,
	whitelist WhitelistChecker,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		oauth:       oauth,
		whitelist:   whitelist,
		sessionRepo: sessionRepo,
		sanitizer:   security.NewProfileSanitizer(),
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Authorize はホワイトリスト照合結果から認可可否を決める。
// 照合でエラーが発生した場合は見つかったかどうかに関わらず拒否する。
func Authorize(found bool, lookupErr error) bool {
	return lookupErr == nil && found
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// プロバイダーとのやり取りに失敗した場合はErrProviderFailedを返し、セッションは作らない。
// ホワイトリスト照合のエラーは拒否として扱い、セッションは IsWhitelisted=false で発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	identity, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrProviderFailed) {
			err = fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		return nil, err
	}
	sanitized := s.sanitizer.Sanitize(*identity)

	// 2. ホワイトリスト照合（失敗時は拒否）
	found, lookupErr := s.whitelist.IsWhitelisted(ctx, sanitized.Email)
	if lookupErr != nil {
		s.metrics.RecordWhitelistCheckError()
		slog.Error("whitelist check failed, denying access",
			slog.String("email", sanitized.Email),
			slog.String("error", lookupErr.Error()),
		)
	}
	whitelisted := Authorize(found, lookupErr)

	// 3. セッションを発行
	session, err := s.createSession(ctx, sanitized, whitelisted)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user authenticated",
		slog.String("email", sanitized.Email),
		slog.Bool("whitelisted", whitelisted),
	)
	return session, nil
}

// CurrentSession はセッションIDから有効なセッションを返す。
// IDが空、セッションが存在しない、または期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.IsExpired(s.now()) {
		return nil, nil
	}
	return session, nil
}

// Logout はセッションを破棄する。IDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// createSession はセッションを作成し永続化する。有効期限は作成時に固定する。
func (s *Service) createSession(ctx context.Context, identity model.Identity, whitelisted bool) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:            sessionID,
		Identity:      identity,
		IsWhitelisted: whitelisted,
		ExpiresAt:     now.Add(s.config.SessionTTL),
		CreatedAt:     now,
	}

	ctx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Package whitelist はメールアドレスのホワイトリスト登録と照合を提供する。
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gatekeeper/internal/model"
	"github.com/hitoshi/gatekeeper/internal/repository"
)

// ErrInvalidEmail はメールアドレスが未指定または形式不正の場合のエラー。
var ErrInvalidEmail = errors.New("invalid email format")

// ErrAlreadyWhitelisted は正規化後のメールアドレスが登録済みの場合のエラー。
var ErrAlreadyWhitelisted = errors.New("email already whitelisted")

// Service はホワイトリストの登録・照合を行う。
type Service struct {
	repo      repository.WhitelistRepository
	validator *Validator
	timeout   time.Duration
	now       func() time.Time
}

// NewService はServiceを生成する。
// timeoutはストア呼び出し1回あたりの上限時間。0以下の場合は呼び出し元のcontextに従う。
func NewService(repo repository.WhitelistRepository, timeout time.Duration) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(),
		timeout:   timeout,
		now:       time.Now,
	}
}

// Register はメールアドレスを小文字化してホワイトリストに登録する。
// 形式不正はErrInvalidEmail、重複はErrAlreadyWhitelistedを返す。
// 重複判定はストアの一意制約で行い、事前の存在確認はしない。
func (s *Service) Register(ctx context.Context, email string) (*model.WhitelistEntry, error) {
	if !s.validator.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	entry := &model.WhitelistEntry{
		ID:        uuid.NewString(),
		Email:     model.NormalizeEmail(email),
		CreatedAt: s.now().UTC(),
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAlreadyWhitelisted
		}
		return nil, fmt.Errorf("failed to register email: %w", err)
	}
	return entry, nil
}

// IsWhitelisted はメールアドレスを小文字化してホワイトリストに存在するかを返す。
func (s *Service) IsWhitelisted(ctx context.Context, email string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	found, err := s.repo.ExistsByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}
	return found, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// ErrDuplicateEmail は同一の正規化済みメールアドレスが既に登録されている場合のエラー。
// 一意性はストア側の制約（ユニークインデックス）で保証する。
var ErrDuplicateEmail = errors.New("email already whitelisted")

// WhitelistRepository はホワイトリストの永続化インターフェース。
type WhitelistRepository interface {
	// ExistsByEmail は正規化済みメールアドレスと完全一致するエントリが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Insert はエントリを追加する。
	// 同一メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	// 存在確認と挿入は単一の原子的な操作として行う。
	Insert(ctx context.Context, entry *model.WhitelistEntry) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しない場合・期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}

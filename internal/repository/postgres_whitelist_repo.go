package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// PostgresWhitelistRepo はPostgreSQLを使用したホワイトリストリポジトリ。
// whitelist_entries.email のUNIQUE制約で重複登録を防ぐ。
type PostgresWhitelistRepo struct {
	db *sql.DB
}

// NewPostgresWhitelistRepo はPostgresWhitelistRepoを生成する。
func NewPostgresWhitelistRepo(db *sql.DB) *PostgresWhitelistRepo {
	return &PostgresWhitelistRepo{db: db}
}

// ExistsByEmail はメールアドレスが登録済みかどうかを返す。
func (r *PostgresWhitelistRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM whitelist_entries WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query whitelist: %w", err)
	}
	return exists, nil
}

// Insert はエントリを追加する。
// ON CONFLICT DO NOTHING で挿入し、影響行数が0の場合は重複とみなす。
func (r *PostgresWhitelistRepo) Insert(ctx context.Context, entry *model.WhitelistEntry) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO whitelist_entries (id, email, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING`,
		entry.ID, entry.Email, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert whitelist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateEmail
	}
	return nil
}

// compile-time interface check
var _ WhitelistRepository = (*PostgresWhitelistRepo)(nil)

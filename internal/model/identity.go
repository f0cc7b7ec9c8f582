package model

import (
	"strings"
	"time"
)

// Identity はOAuthプロバイダーから取得したユーザー属性を表す。
// 永続化はせず、セッションの寿命の間だけ保持する。
type Identity struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Session はブラウザと認証済みIdentityを結び付けるサーバー側レコードを表す。
// IsWhitelisted はコールバック時点のホワイトリスト判定のスナップショットであり、
// 後からホワイトリストが変更されても既存セッションには反映されない。
type Session struct {
	ID            string
	Identity      Identity
	IsWhitelisted bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// IsExpired はセッションが指定時刻において期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// WhitelistEntry はホワイトリストに登録されたメールアドレスを表す。
// Emailは常に小文字に正規化された値を保持する。
type WhitelistEntry struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// NormalizeEmail はメールアドレスをホワイトリスト照合用に小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}

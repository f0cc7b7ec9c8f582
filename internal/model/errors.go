// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, whitelist, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeAlreadyWhitelisted = "ALREADY_WHITELISTED"
	ErrCodeWhitelistFailed    = "WHITELIST_FAILED"
	ErrCodeLogoutFailed       = "LOGOUT_FAILED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// OAuthコールバック後にクライアントへ返すクエリパラメータ。
// フロントエンドとの契約のため値を変更してはならない。
const (
	AuthParam  = "auth"
	ErrorParam = "error"

	AuthStatusSuccess = "success"
	AuthStatusDenied  = "denied"

	AuthErrorFailed = "auth_failed"
	AuthErrorServer = "server_error"
)

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Invalid email format",
		Category: "validation",
		Action:   "name@example.com の形式でメールアドレスを入力してください。",
	}
}

// NewAlreadyWhitelistedError は登録済みメールアドレスの重複登録エラーを生成する。
func NewAlreadyWhitelistedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyWhitelisted,
		Message:  "Email already whitelisted",
		Category: "whitelist",
		Action:   "このメールアドレスはそのままサインインに使用できます。",
	}
}

// NewWhitelistFailedError はホワイトリスト登録の内部エラーを生成する。
func NewWhitelistFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWhitelistFailed,
		Message:  "Failed to add email",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLogoutFailedError はセッション破棄失敗エラーを生成する。
func NewLogoutFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLogoutFailed,
		Message:  "Logout failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部サーバーエラーを生成する。
// 詳細はログのみに記録し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatekeeper/internal/model"
	"github.com/hitoshi/gatekeeper/internal/security"
)

// SessionCookieName は署名済みセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey       = contextKey("session")
	sessionHolderContextKey = contextKey("session_holder")
)

// sessionHolder は外側のミドルウェア（ロギング）へ認証済みユーザーを伝えるための入れ物。
type sessionHolder struct {
	email string
}

func contextWithSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, sessionHolderContextKey, h)
}

// SessionFinder は有効なセッションの検索に必要なインターフェース。
// 存在しない・期限切れの場合は (nil, nil) を返す。
type SessionFinder interface {
	CurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// ReadSessionID はリクエストのCookieから署名を検証済みのセッションIDを取り出す。
// Cookieがない、または署名が不正な場合は空文字を返す。
func ReadSessionID(r *http.Request, signer *security.CookieSigner) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, err := signer.Verify(cookie.Value)
	if err != nil {
		slog.Warn("session cookie signature mismatch",
			slog.String("path", r.URL.Path),
		)
		return ""
	}
	return id
}

// NewSessionMiddleware はCookieからセッションを読み取り、有効であればコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストも拒否せずに通す。認可の判断はハンドラーが行う。
// セッションストアのエラーは未認証として扱い、ログに記録する。
func NewSessionMiddleware(finder SessionFinder, signer *security.CookieSigner) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ReadSessionID(r, signer)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := finder.CurrentSession(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			if h, ok := r.Context().Value(sessionHolderContextKey).(*sessionHolder); ok {
				h.email = session.Identity.Email
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアで有効なセッションが見つかった場合のみ非nil。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

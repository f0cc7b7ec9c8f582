// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/gatekeeper/internal/auth"
	"github.com/hitoshi/gatekeeper/internal/metrics"
	"github.com/hitoshi/gatekeeper/internal/middleware"
	"github.com/hitoshi/gatekeeper/internal/model"
	"github.com/hitoshi/gatekeeper/internal/security"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	ClientURL     string // コールバック後のリダイレクト先
	CookieDomain  string
	Production    bool // trueの場合はSecureかつSameSite=NoneのCookieを発行する
	SessionMaxAge int  // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	signer  *security.CookieSigner
	metrics metrics.MetricsCollector
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(
	service AuthServiceInterface,
	signer *security.CookieSigner,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		service: service,
		signer:  signer,
		metrics: collector,
		config:  config,
	}
}

type meResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.Identity `json:"user,omitempty"`
	IsWhitelisted *bool           `json:"isWhitelisted,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.Production,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はOAuthコールバックを処理し、結果フラグ付きでクライアントへリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stateCookie, cookieErr := r.Cookie(oauthStateCookie)
	h.clearCookie(w, oauthStateCookie, "")

	// 1. プロバイダーが返したエラー（同意拒否など）
	if providerErr := query.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error", slog.String("error", providerErr))
		h.redirectToClient(w, r, model.ErrorParam, model.AuthErrorFailed, metrics.LoginAuthFailed)
		return
	}

	// 2. stateの検証（CSRF対策）
	state := query.Get("state")
	if cookieErr != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.redirectToClient(w, r, model.ErrorParam, model.AuthErrorFailed, metrics.LoginAuthFailed)
		return
	}

	// 3. 認可コードの取得
	code := query.Get("code")
	if code == "" {
		slog.Warn("oauth callback without authorization code")
		h.redirectToClient(w, r, model.ErrorParam, model.AuthErrorFailed, metrics.LoginAuthFailed)
		return
	}

	// 4. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrProviderFailed) {
			slog.Warn("oauth exchange failed", slog.String("error", err.Error()))
			h.redirectToClient(w, r, model.ErrorParam, model.AuthErrorFailed, metrics.LoginAuthFailed)
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, model.ErrorParam, model.AuthErrorServer, metrics.LoginServerError)
		return
	}

	// 5. セッションCookieを設定（HTTP Only、署名付き）
	http.SetCookie(w, h.sessionCookie(h.signer.Sign(session.ID), h.config.SessionMaxAge))

	if session.IsWhitelisted {
		h.redirectToClient(w, r, model.AuthParam, model.AuthStatusSuccess, metrics.LoginSuccess)
		return
	}
	h.redirectToClient(w, r, model.AuthParam, model.AuthStatusDenied, metrics.LoginDenied)
}

// Me は現在のセッションの認証状態を返す。
// 有効なセッションがない場合も200で {"authenticated":false} を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{}
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		identity := session.Identity
		whitelisted := session.IsWhitelisted
		resp = meResponse{
			Authenticated: true,
			User:          &identity,
			IsWhitelisted: &whitelisted,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄し、Cookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.ReadSessionID(r, h.signer)

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewLogoutFailedError())
		return
	}

	h.clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// redirectToClient はクエリフラグを付けてクライアントURLへリダイレクトし、ログイン結果を記録する。
func (h *AuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, key, value, outcome string) {
	h.metrics.RecordLogin(outcome)
	target := h.config.ClientURL + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// sessionCookie は環境に応じた属性のセッションCookieを生成する。
// 本番環境ではクロスサイトで送信できるようSecureかつSameSite=Noneにする。
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.config.Production {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	c := h.sessionCookie("", -1)
	c.Name = name
	c.Domain = domain
	http.SetCookie(w, c)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

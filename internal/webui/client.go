package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/gatekeeper/internal/middleware"
)

// maxGatewayResponseBytes はゲートウェイ応答として読み込むボディの上限。
const maxGatewayResponseBytes = 64 << 10

// APIClient はゲートウェイとHTTPで通信するクライアント。
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient はAPIClientを生成する。timeoutは1回のリクエスト全体の上限。
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			// ゲートウェイのリダイレクトはブラウザに任せる
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ForRequest はブラウザからのリクエストに紐付いたGatewayを返す。
// ブラウザのセッションCookieとクライアントIPをゲートウェイへ転送する。
func (c *APIClient) ForRequest(r *http.Request) *GatewaySession {
	s := &GatewaySession{
		client:   c,
		clientIP: middleware.ClientIP(r),
	}
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		s.sessionCookie = cookie
	}
	return s
}

// GatewaySession はブラウザ1リクエスト分のゲートウェイ呼び出しをまとめる。
type GatewaySession struct {
	client        *APIClient
	sessionCookie *http.Cookie
	clientIP      string

	mu         sync.Mutex
	setCookies []*http.Cookie
}

// Me は現在のセッションの認証状態を照会する。
func (s *GatewaySession) Me(ctx context.Context) (*MeResult, error) {
	resp, err := s.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway /auth/me returned status %d", resp.StatusCode)
	}

	var me MeResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGatewayResponseBytes)).Decode(&me); err != nil {
		return nil, fmt.Errorf("failed to decode /auth/me response: %w", err)
	}
	return &me, nil
}

// Logout はゲートウェイのセッションを破棄する。
// ゲートウェイが返したCookieのクリア指示はSetCookiesで取り出せる。
func (s *GatewaySession) Logout(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway /auth/logout returned status %d", resp.StatusCode)
	}
	return nil
}

// Register はメールアドレスのホワイトリスト登録を依頼する。
func (s *GatewaySession) Register(ctx context.Context, email string) (*RegisterResult, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, "/api/whitelist", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &RegisterResult{Created: true}, nil
	}

	var errBody struct {
		Error string `json:"error"`
	}
	// ボディが読めない場合はメッセージなしとして扱う
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxGatewayResponseBytes)).Decode(&errBody)
	return &RegisterResult{Error: errBody.Error}, nil
}

// SetCookies はゲートウェイが返したSet-Cookieを返す。ブラウザへそのまま中継する。
func (s *GatewaySession) SetCookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Cookie(nil), s.setCookies...)
}

func (s *GatewaySession) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.sessionCookie != nil {
		req.AddCookie(&http.Cookie{Name: s.sessionCookie.Name, Value: s.sessionCookie.Value})
	}
	if s.clientIP != "" {
		req.Header.Set("X-Forwarded-For", s.clientIP)
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s %s failed: %w", method, path, err)
	}

	if cookies := resp.Cookies(); len(cookies) > 0 {
		s.mu.Lock()
		s.setCookies = append(s.setCookies, cookies...)
		s.mu.Unlock()
	}
	return resp, nil
}

var _ Gateway = (*GatewaySession)(nil)

package webui

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gatekeeper/internal/middleware"
)

// webCSP はWebクライアント用のContent-Security-Policy。
// アバター画像は外部のhttpsから読み込む。
const webCSP = "default-src 'self'; img-src 'self' https:; style-src 'self' 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Handler      *Handler
	GatewayURL   *url.URL
	Logger       *slog.Logger
	CookieSecure bool
	CookieDomain string

	// TrustedProxies はX-Forwarded-Forを信頼する接続元。空の場合は接続元アドレスをそのまま使う。
	TrustedProxies middleware.TrustedProxies
}

// NewRouter はWebクライアントのルーティングを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RealIP(信頼済みプロキシのみ) → Logging → CSRF（UIのみ）
//
// /auth/* と /api/* はゲートウェイへそのままプロキシする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(webCSP))
	r.Use(middleware.NewRealIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewLoggingMiddleware(logger))

	proxy := NewGatewayProxy(deps.GatewayURL)
	r.Handle("/auth/*", proxy)
	r.Handle("/api/*", proxy)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))

		r.Get("/", deps.Handler.Index)
		r.Post("/ui/logout", deps.Handler.Logout)
		r.Post("/ui/back", deps.Handler.Back)
		r.Post("/ui/register", deps.Handler.Register)
	})

	return r
}

// NewGatewayProxy はゲートウェイへのリバースプロキシを返す。
// クライアントIPはX-Forwarded-Forで伝える。
func NewGatewayProxy(target *url.URL) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("gateway proxy failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	}
}

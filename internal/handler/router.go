package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gatekeeper/internal/metrics"
	"github.com/hitoshi/gatekeeper/internal/middleware"
	"github.com/hitoshi/gatekeeper/internal/security"
)

// gatewayCSP はJSONのみを返すゲートウェイ用のContent-Security-Policy。
const gatewayCSP = "default-src 'none'; frame-ancestors 'none'"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CookieSigner      *security.CookieSigner
	CORSAllowedOrigin string
	TrustedProxies    middleware.TrustedProxies // X-Forwarded-Forを信頼する接続元
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は /metrics を公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ホワイトリスト
	WhitelistService WhitelistServiceInterface

	// ヘルスチェック
	HealthChecks map[string]Pinger
}

// NewRouter はゲートウェイの全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RealIP(信頼済みプロキシのみ) → CORS → Logging → Metrics → Session → RateLimit(General)
//
// /health と /metrics はセッションとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(gatewayCSP))
	r.Use(middleware.NewRealIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.CookieSigner, collector, deps.AuthConfig)
	whitelistHandler := NewWhitelistHandler(deps.WhitelistService, collector)
	healthHandler := NewHealthHandler(deps.HealthChecks)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- アプリケーションエンドポイント ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.CookieSigner))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.Get("/google", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})

		// POST /api/whitelist - 認証不要の自己登録（登録専用レート制限を追加）
		r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/api/whitelist", whitelistHandler.Register)
	})

	return r
}

// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/gatekeeper/internal/auth"
	"github.com/hitoshi/gatekeeper/internal/config"
	"github.com/hitoshi/gatekeeper/internal/database"
	"github.com/hitoshi/gatekeeper/internal/handler"
	"github.com/hitoshi/gatekeeper/internal/logger"
	"github.com/hitoshi/gatekeeper/internal/metrics"
	"github.com/hitoshi/gatekeeper/internal/middleware"
	"github.com/hitoshi/gatekeeper/internal/security"
	"github.com/hitoshi/gatekeeper/internal/webui"
	"github.com/hitoshi/gatekeeper/internal/whitelist"
	"github.com/hitoshi/gatekeeper/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数でConfigを読み込み、LOG_LEVELを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort(args))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWeb:
		return runWeb(ctx, cfg)
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe は認証ゲートウェイを起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateGateway(); err != nil {
		return err
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	// 1. ストアの初期化
	stores, err := openBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer stores.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	whitelistService := whitelist.NewService(stores.whitelist, cfg.OutboundTimeout)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.OutboundTimeout,
	})
	authService := auth.NewService(
		oauthProvider, whitelistService, stores.sessions, collector,
		auth.ServiceConfig{
			SessionTTL:   cfg.SessionTTL(),
			StoreTimeout: cfg.OutboundTimeout,
		},
	)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRegister),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     authService,
		CookieSigner:      security.NewCookieSigner(cfg.SessionSecret),
		CORSAllowedOrigin: cfg.ClientURL,
		TrustedProxies:    trustedProxies,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			ClientURL:     cfg.ClientURL,
			CookieDomain:  cfg.CookieDomain,
			Production:    cfg.IsProduction(),
			SessionMaxAge: cfg.SessionMaxAge,
		},

		WhitelistService: whitelistService,
		HealthChecks:     stores.checks,
	})

	slog.Info("auth gateway configured",
		slog.String("session_store", cfg.SessionStore),
		slog.String("whitelist_store", cfg.WhitelistStore),
		slog.String("client_url", cfg.ClientURL),
	)

	// 5. HTTPサーバーの起動
	return serveUntilDone(ctx, newServer(cfg.ServerPort, router), "auth gateway")
}

// runWeb はWebクライアントを起動する。
// ページの描画に加え、/auth/* と /api/* をゲートウェイへプロキシする。
func runWeb(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateWeb(); err != nil {
		return err
	}

	gatewayURL, err := url.Parse(cfg.GatewayURL)
	if err != nil {
		return fmt.Errorf("invalid GATEWAY_URL: %w", err)
	}
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	controller := webui.NewController(func(v webui.View) {
		slog.Debug("view resolved", slog.String("view", string(v)))
	})
	client := webui.NewAPIClient(cfg.GatewayURL, cfg.OutboundTimeout)

	h, err := webui.NewHandler(controller, client, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	router := webui.NewRouter(&webui.RouterDeps{
		Handler:        h,
		GatewayURL:     gatewayURL,
		Logger:         slog.Default(),
		CookieSecure:   cfg.IsProduction(),
		CookieDomain:   cfg.CookieDomain,
		TrustedProxies: trustedProxies,
	})

	slog.Info("web client configured",
		slog.String("gateway_url", cfg.GatewayURL),
	)

	return serveUntilDone(ctx, newServer(cfg.WebPort, router), "web client")
}

// runWorker はワーカーモードで起動する。
// PostgreSQLセッションストアの期限切れセッションを定期的に削除する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OutboundTimeout)
	defer cancel()
	if err := database.PingWithRetry(pingCtx, "postgres", db.PingContext); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの起動（ブロッキング）
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", logger.MaskSecret(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serveUntilDone はHTTPサーバーを起動し、ctxがキャンセルされたらグレースフルシャットダウンする。
// リッスンに失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s listen failed: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// healthcheckPort は確認対象のポートを返す。
// "healthcheck web" の場合はWEB_PORT、それ以外はSERVER_PORTを使う。
func healthcheckPort(args []string) string {
	key, fallback := "SERVER_PORT", "3000"
	if len(args) > 1 && args[1] == string(CommandWeb) {
		key, fallback = "WEB_PORT", "5173"
	}
	if port := os.Getenv(key); port != "" {
		return port
	}
	return fallback
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

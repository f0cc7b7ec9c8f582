package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger はバックエンドストアの疎通確認を行う。
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc は関数をPingerとして扱うためのアダプタ。
type PingerFunc func(ctx context.Context) error

// Ping はfを呼び出す。
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler はHealthHandlerを生成する。checksは /health?deep=1 の場合のみ実行する。
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health はプロセスの生存を返す。
// deep=1 が指定された場合は登録済みのストアに疎通確認を行い、失敗があれば503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") != "1" || len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	result := map[string]string{"status": "ok"}
	status := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Error("health check failed",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
			result[name] = "unavailable"
			result["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}

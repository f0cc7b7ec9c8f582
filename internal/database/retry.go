package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回遅延。
	initialBackoff = 250 * time.Millisecond
	// maxBackoff は接続リトライの最大遅延。
	maxBackoff = 5 * time.Second
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回250ミリ秒、2倍ずつ増加、最大5秒。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// PingWithRetry はpingが成功するまで指数バックオフで再試行する。
// ctxが終了するとその時点の最後のエラーを返す。
// コンテナ起動直後にストアがまだ受け付けていない場合に使う。
func PingWithRetry(ctx context.Context, name string, ping func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := ping(ctx)
		if err == nil {
			return nil
		}

		delay := CalculateBackoff(attempt)
		slog.Warn("backend not ready, retrying",
			slog.String("backend", name),
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s unavailable after %d attempts: %w", name, attempt+1, err)
		case <-timer.C:
		}
	}
}

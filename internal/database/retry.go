package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は疎通確認リトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は疎通確認リトライの最大遅延。
	maxBackoff = 8 * time.Second
)

// Pinger はDBの疎通確認を行う。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WaitForReady はDBが応答するまで最大attempts回疎通確認を行う。
// 起動直後のコンテナではDBの準備が遅れることがあるため、失敗のたびに指数バックオフで待つ。
func WaitForReady(ctx context.Context, db Pinger, attempts int) error {
	return waitForReady(ctx, db, attempts, CalculateBackoff)
}

func waitForReady(ctx context.Context, db Pinger, attempts int, backoff func(int) time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gave up waiting for database: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, err)
}

// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのセッション、期限切れまたは使用済みの再設定トークン、
// プロセス内の表示記録を削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Sweeper はプロセス内に保持している期限切れの記録を削除する。
type Sweeper interface {
	Cleanup() int
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordCleanup(target string, count int64)
}

// target は1つの削除対象テーブルとそのクエリ。
type target struct {
	name  string
	query string
}

var (
	sessionsTarget = target{
		name:  "sessions",
		query: `DELETE FROM sessions WHERE expires_at < now() - $1::interval`,
	}
	recoveryTokensTarget = target{
		name:  "recovery_tokens",
		query: `DELETE FROM recovery_tokens WHERE expires_at < now() - $1::interval OR used_at < now() - $1::interval`,
	}
)

type namedSweeper struct {
	name    string
	sweeper Sweeper
}

// Job は期限切れデータの削除ジョブ。何度実行しても結果は変わらない。
type Job struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	targets  []target
	sweepers []namedSweeper
	Grace    time.Duration // 期限切れ後も残しておく猶予（デフォルト: 1時間）
}

// Option はJobのオプション。
type Option func(*Job)

// WithRecorder は削除件数のRecorderを設定する。
func WithRecorder(r Recorder) Option {
	return func(j *Job) { j.recorder = r }
}

// WithSweeper はプロセス内の記録を削除するSweeperを追加する。
func WithSweeper(name string, s Sweeper) Option {
	return func(j *Job) { j.sweepers = append(j.sweepers, namedSweeper{name: name, sweeper: s}) }
}

// WithoutSessions はセッションテーブルを削除対象から外す。
// セッションをRedisに保存する場合はTTLで失効するため不要になる。
func WithoutSessions() Option {
	return func(j *Job) {
		kept := j.targets[:0]
		for _, t := range j.targets {
			if t.name != sessionsTarget.name {
				kept = append(kept, t)
			}
		}
		j.targets = kept
	}
}

// NewJob は新しいJobを生成する。dbがnilの場合はSweeperのみを実行する。
func NewJob(db Executor, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		db:      db,
		logger:  logger,
		targets: []target{sessionsTarget, recoveryTokensTarget},
		Grace:   time.Hour,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run は全ての削除対象を1回ずつ処理する。
// あるテーブルの削除に失敗しても残りの対象は処理し、最初のエラーを返す。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	interval := fmt.Sprintf("%d seconds", int64(j.Grace/time.Second))

	var firstErr error
	var total int64
	for _, t := range j.targets {
		if j.db == nil {
			break
		}
		n, err := j.deleteExpired(ctx, t, interval)
		if err != nil {
			j.logger.Error("failed to clean up expired rows",
				slog.String("target", t.name),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
		j.record(t.name, n)
	}

	for _, s := range j.sweepers {
		n := int64(s.sweeper.Cleanup())
		total += n
		j.record(s.name, n)
	}

	j.logger.Info("cleanup finished",
		slog.Int64("deleted_count", total),
		slog.Duration("grace", j.Grace),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return firstErr
}

func (j *Job) deleteExpired(ctx context.Context, t target, interval string) (int64, error) {
	result, err := j.db.ExecContext(ctx, t.query, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired %s: %w", t.name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows for %s: %w", t.name, err)
	}
	return n, nil
}

func (j *Job) record(name string, n int64) {
	if j.recorder != nil {
		j.recorder.RecordCleanup(name, n)
	}
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("cleanup worker started", slog.Duration("interval", interval))

	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Package listing は承認済みスタートアップの一覧取得と表示状態を提供する。
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/summit/internal/model"
)

// ApprovedQuerier は is_approved = true の行だけを返すクエリ。
type ApprovedQuerier interface {
	ListApproved(ctx context.Context) ([]model.Startup, error)
}

// Recorder は取得結果を記録する。
type Recorder interface {
	RecordListFetch(result string)
	RecordListFetchLatency(duration time.Duration)
}

// Fetcher は承認済みスタートアップを取得する。
type Fetcher struct {
	querier  ApprovedQuerier
	recorder Recorder
}

// NewFetcher はFetcherを生成する。recorderはnilでもよい。
func NewFetcher(querier ApprovedQuerier, recorder Recorder) *Fetcher {
	return &Fetcher{querier: querier, recorder: recorder}
}

// FetchApproved は承認済みスタートアップをサービスの返した順で返す。
// 承認条件はクエリ側で評価されるが、IsApprovedがfalseの行が混ざっていた場合は
// 表示前に取り除いて警告を記録する。
func (f *Fetcher) FetchApproved(ctx context.Context) ([]model.Startup, error) {
	start := time.Now()
	rows, err := f.querier.ListApproved(ctx)
	if f.recorder != nil {
		f.recorder.RecordListFetchLatency(time.Since(start))
	}
	if err != nil {
		f.record("error")
		return nil, fmt.Errorf("failed to fetch approved startups: %w", err)
	}

	approved := make([]model.Startup, 0, len(rows))
	for _, s := range rows {
		if !s.IsApproved {
			slog.Warn("unapproved startup returned by approved query",
				slog.Int64("startup_id", s.ID),
			)
			continue
		}
		approved = append(approved, s)
	}

	if len(approved) == 0 {
		f.record("empty")
	} else {
		f.record("populated")
	}
	return approved, nil
}

func (f *Fetcher) record(result string) {
	if f.recorder != nil {
		f.recorder.RecordListFetch(result)
	}
}

package listing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/summit/internal/model"
)

// ApprovedFetcher は承認済みスタートアップを取得する。
type ApprovedFetcher interface {
	FetchApproved(ctx context.Context) ([]model.Startup, error)
}

// Loader は1回の画面表示に対応する一覧の状態を保持する。
// 最初のLoadで取得し、以降は言語コードが変わったときだけ再取得する。
// 取得ごとに世代番号を採り、解決時に最新でなければ結果を捨てる。
//
// HTTPハンドラーではリクエストごとに1つ生成してReleaseする（1表示につき1回の取得）。
// そのためサーバー上で言語の切り替えや古い世代の破棄が起きるのは、
// 同じLoaderを複数回Loadする呼び出し側（長く生きる画面の状態など）に限られる。
type Loader struct {
	fetcher ApprovedFetcher
	gen     atomic.Uint64

	mu      sync.Mutex
	started bool
	lang    string
	view    View
}

// NewLoader はLoaderを生成する。初期状態はLoading。
func NewLoader(fetcher ApprovedFetcher) *Loader {
	return &Loader{
		fetcher: fetcher,
		view:    LoadingView(""),
	}
}

// Load は言語langの一覧を返す。同じ言語で取得済み（または取得中）の場合は取得しない。
func (l *Loader) Load(ctx context.Context, lang string) View {
	l.mu.Lock()
	if l.started && l.lang == lang {
		v := l.view
		l.mu.Unlock()
		return v
	}
	l.started = true
	l.lang = lang
	l.view = LoadingView(lang)
	gen := l.gen.Add(1)
	l.mu.Unlock()

	startups, err := l.fetcher.FetchApproved(ctx)
	if err != nil {
		slog.Error("failed to load startup list", slog.String("error", err.Error()))
	}
	resolved := Resolve(startups, err, lang)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen.Load() != gen {
		return l.view
	}
	l.view = resolved
	return resolved
}

// View は現在のViewを返す。
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view
}

// Release は取得中の結果を今後すべて捨てるようにする。画面の破棄時に呼ぶ。
func (l *Loader) Release() {
	l.gen.Add(1)
}

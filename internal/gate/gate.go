// Package gate は管理画面を保護する認可ゲートを提供する。
// セッションの確認と管理者行の確認が両方成功するまで保護対象を描画しない。
package gate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
)

// Decision はゲートの判定状態。
type Decision int

const (
	// Checking は判定中。初期状態。
	Checking Decision = iota
	// Authorized は保護対象の描画を許可した終端状態。
	Authorized
	// Redirecting は公開ページへ遷移させる終端状態。
	Redirecting
)

func (d Decision) String() string {
	switch d {
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Result はCheckの結果。AuthorizedのときのみUserIDが設定される。
type Result struct {
	Decision Decision
	UserID   string
}

// SessionResolver は現在のセッションを解決する。
// 不明・期限切れのセッションにはnilを返す。
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (*model.Session, error)
}

// AdminFinder は管理者行を検索する。行がない場合はnilを返す。
type AdminFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.AdminRecord, error)
}

// Recorder は判定結果を記録する。
type Recorder interface {
	RecordGateDecision(decision string)
}

// Gate は認可ゲート。判定に失敗した場合は常に拒否する（fail closed）。
type Gate struct {
	sessions SessionResolver
	admins   AdminFinder
	recorder Recorder
	landing  string
}

// Option はGateのオプション。
type Option func(*Gate)

// WithRecorder は判定結果のRecorderを設定する。
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithLanding は拒否時の遷移先を設定する。デフォルトは "/"。
func WithLanding(path string) Option {
	return func(g *Gate) { g.landing = path }
}

// New はGateを生成する。
func New(sessions SessionResolver, admins AdminFinder, opts ...Option) *Gate {
	g := &Gate{
		sessions: sessions,
		admins:   admins,
		landing:  "/",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check はセッショントークンの持ち主が管理者かどうかを判定する。
//  1. トークンが空、またはセッションがない場合はRedirecting
//  2. セッションがある場合のみ管理者行を検索し、エラーまたは行なしはRedirecting
//  3. それ以外はAuthorized
//
// 判定中のエラーやpanicはすべてRedirectingとして扱う。
func (g *Gate) Check(ctx context.Context, token string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic during gate check", slog.Any("panic", rec))
			res = Result{Decision: Redirecting}
		}
		g.record(res.Decision)
	}()

	if token == "" {
		return Result{Decision: Redirecting}
	}

	session, err := g.sessions.CurrentSession(ctx, token)
	if err != nil {
		slog.Warn("gate: session lookup failed", slog.String("error", err.Error()))
		return Result{Decision: Redirecting}
	}
	if session == nil {
		return Result{Decision: Redirecting}
	}

	admin, err := g.admins.FindByUserID(ctx, session.UserID)
	if err != nil {
		slog.Warn("gate: admin lookup failed",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return Result{Decision: Redirecting}
	}
	if admin == nil {
		return Result{Decision: Redirecting}
	}

	return Result{Decision: Authorized, UserID: session.UserID}
}

// Middleware は保護対象のハンドラーをゲートで包むミドルウェアを返す。
// 判定が終わるまでレスポンスには何も書き込まない。
// Authorizedの場合はユーザーIDをコンテキストに注入して次のハンドラーを1回だけ呼び出す。
// それ以外は本文なしの303で公開ページへ遷移させる。未認証と非管理者は区別しない。
func (g *Gate) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
				token = cookie.Value
			}

			res := g.Check(r.Context(), token)
			if res.Decision != Authorized {
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Location", g.landing)
				w.WriteHeader(http.StatusSeeOther)
				return
			}

			w.Header().Set("Cache-Control", "no-store")
			ctx := middleware.ContextWithUserID(r.Context(), res.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *Gate) record(d Decision) {
	if g.recorder != nil {
		g.recorder.RecordGateDecision(d.String())
	}
}

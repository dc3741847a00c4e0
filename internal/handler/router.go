package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/summit/internal/gate"
	"github.com/hitoshi/summit/internal/i18n"
	"github.com/hitoshi/summit/internal/listing"
	"github.com/hitoshi/summit/internal/middleware"
)

// hstsMaxAge はHTTPS公開時に付与するStrict-Transport-Securityの有効期間。
const hstsMaxAge = 180 * 24 * time.Hour

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger
	Bundle *i18n.Bundle

	// ミドルウェア依存
	HealthChecker  HealthChecker
	SessionFinder  middleware.SessionFinder
	RateLimiter    *middleware.RateLimiter
	CSRF           middleware.CSRFConfig
	Cookies        CookieConfig
	StatusRecorder middleware.StatusRecorder // nilの場合はHTTPステータスを記録しない
	MetricsHandler http.Handler              // nilの場合は /metrics を公開しない

	// 管理画面
	Gate  *gate.Gate
	Admin AdminService

	// 公開ページ
	AuthService  AuthService
	Fetcher      listing.ApprovedFetcher
	Applications ApplicationService
	Recovery     RecoverySubmitter
	Promo        PromoTracker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders →
//	RateLimit(General) → OptionalSession → (/admin のみ Gate) → [RateLimit(Sensitive)] → CSRF
//
// サインイン・再設定リンク要求・パスワード送信・応募には機微操作用のレート制限を追加する。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	renderer, err := NewRenderer(deps.Bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to build renderer: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	var headerOpts []middleware.SecurityHeadersOption
	if deps.Cookies.Secure {
		headerOpts = append(headerOpts, middleware.WithHSTS(hstsMaxAge))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(headerOpts...))

	// 運用エンドポイントはセッション・CSRF・レート制限の外に置く
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", staticHandler())

	pageHandler := NewPageHandler(renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies, renderer)
	listingHandler := NewListingHandler(deps.Fetcher, renderer)
	applicationHandler := NewApplicationHandler(deps.Applications, renderer)
	promoHandler := NewPromoHandler(deps.Promo, deps.Cookies, renderer)
	recoveryHandler := NewRecoveryHandler(deps.Recovery, deps.Cookies, renderer)
	adminHandler := NewAdminHandler(deps.Admin, renderer)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))

		// --- 管理画面（認可ゲートをCSRF検証より先に適用する） ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.Gate.Middleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Get("/", adminHandler.Dashboard)
			r.Get("/api/startups/pending", adminHandler.ListPending)
			r.Post("/api/startups/{id}/approve", adminHandler.Approve)
		})

		csrf := middleware.NewCSRFMiddleware(deps.CSRF)

		// --- 機微操作（レート制限をCSRF検証より先に適用する） ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.SensitiveMiddleware())
			r.Use(csrf)

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/recover", authHandler.Recover)
			r.Post("/reset-password", recoveryHandler.Submit)
			r.Post("/api/startups/applications", applicationHandler.Submit)
		})

		r.Group(func(r chi.Router) {
			r.Use(csrf)

			// --- 公開ページ ---
			r.Get("/", pageHandler.Landing)
			r.Get("/startups", listingHandler.Page)
			r.Get("/apply", applicationHandler.Form)
			r.Get("/api/startups", listingHandler.List)
			r.Get("/api/promo", promoHandler.Show)
			r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

			// --- 認証 ---
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)
			r.Get("/auth/verify", authHandler.Verify)

			// --- パスワード再設定 ---
			r.Get("/reset-password", recoveryHandler.Page)
		})
	})

	return r, nil
}

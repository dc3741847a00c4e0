// Package app はコマンドの実行とアプリケーション全体の依存関係の組み立てを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/summit/internal/auth"
	"github.com/hitoshi/summit/internal/config"
	"github.com/hitoshi/summit/internal/database"
	"github.com/hitoshi/summit/internal/gate"
	"github.com/hitoshi/summit/internal/handler"
	"github.com/hitoshi/summit/internal/i18n"
	"github.com/hitoshi/summit/internal/listing"
	"github.com/hitoshi/summit/internal/logger"
	"github.com/hitoshi/summit/internal/metrics"
	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/promo"
	"github.com/hitoshi/summit/internal/recovery"
	"github.com/hitoshi/summit/internal/repository"
	"github.com/hitoshi/summit/internal/security"
	"github.com/hitoshi/summit/internal/session"
	"github.com/hitoshi/summit/internal/startup"
	"github.com/hitoshi/summit/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

func runWithConfig(w io.Writer, cmd Command, run func(*config.Config) error) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", string(cfg.SessionStore)),
	)

	return run(cfg)
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DatabaseMaxOpenConns
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, pool, cfg.DatabaseConnectAttempts)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// openSessionStore は設定に応じたセッションの保存先を返す。
// closeは保存先が保持する接続を閉じる。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (store repository.SessionRepository, closeFn func(), err error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return repository.NewPostgresSessionRepo(db), func() {}, nil
	}

	client, err := session.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis session store connected")
	return session.NewRedisStore(client), func() { client.Close() }, nil
}

// newAuthService は認証サービスを組み立てる。
func newAuthService(cfg *config.Config, db *sql.DB, sessions repository.SessionRepository) *auth.Service {
	return auth.NewService(
		repository.NewPostgresUserRepo(db),
		sessions,
		repository.NewPostgresRecoveryTokenRepo(db),
		auth.NewLogNotifier(slog.Default()),
		auth.ServiceConfig{
			SessionMaxAge:      cfg.SessionMaxAge,
			RecoveryTokenTTL:   cfg.RecoveryTokenTTL,
			RecoverySessionTTL: cfg.RecoverySessionTTL,
			BaseURL:            cfg.BaseURL,
		},
	)
}

// runServe はHTTPサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続とセッションストア
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, closeSessions, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	bundle, err := i18n.Load(cfg.DefaultLang)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	authService := newAuthService(cfg, db, sessions)
	startupRepo := repository.NewPostgresStartupRepo(db)
	startupService := startup.NewService(startupRepo, security.NewTextSanitizer(), collector)
	fetcher := listing.NewFetcher(startupRepo, collector)
	adminGate := gate.New(authService, repository.NewPostgresAdminRepo(db), gate.WithRecorder(collector))
	flow := recovery.NewFlow(authService,
		recovery.WithRevoker(authService),
		recovery.WithRecorder(collector),
		recovery.WithRedirectDelay(cfg.RecoveryRedirectDelay),
	)
	tracker := promo.NewTracker(cfg.PromoTTL, promo.WithCapacity(cfg.PromoMaxVisitors))

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSensitive),
	)
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	router, err := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		Bundle:         bundle,
		HealthChecker:  db,
		SessionFinder:  authService,
		RateLimiter:    rateLimiter,
		CSRF:           middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		Cookies:        handler.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure},
		StatusRecorder: collector,
		MetricsHandler: metrics.Handler(registry),

		Gate:  adminGate,
		Admin: startupService,

		AuthService:  authService,
		Fetcher:      fetcher,
		Applications: startupService,
		Recovery:     flow,
		Promo:        tracker,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 5. プロセス内の表示記録は同じプロセスで掃除する
	if cfg.PromoTTL > 0 {
		sweeper := cleanup.NewJob(nil, slog.Default(),
			cleanup.WithSweeper("promo_visitors", tracker),
			cleanup.WithRecorder(collector),
		)
		go sweeper.Start(ctx, cfg.CleanupInterval)
	}

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はクリーンアップワーカーとして起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []cleanup.Option{}
	if cfg.SessionStore == config.SessionStoreRedis {
		opts = append(opts, cleanup.WithoutSessions())
	}
	job := cleanup.NewJob(db, slog.Default(), opts...)

	// ワーカーをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runUserCreate はメールアドレスとパスワードでユーザーを作成する。
func runUserCreate(ctx context.Context, cfg *config.Config, email, password string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := newAuthService(cfg, db, repository.NewPostgresSessionRepo(db))
	user, err := authService.Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", slog.String("user_id", user.ID))
	return nil
}

// runAdminChange はユーザーの管理者権限を付与または剥奪する。
func runAdminChange(ctx context.Context, cfg *config.Config, email string, grant bool) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return changeAdmin(ctx, repository.NewPostgresUserRepo(db), repository.NewPostgresAdminRepo(db), email, grant)
}

// changeAdmin はメールアドレスでユーザーを引き、管理者行を作成または削除する。
func changeAdmin(ctx context.Context, users repository.UserRepository, admins repository.AdminRepository, email string, grant bool) error {
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no user with email %q", email)
	}

	if grant {
		if err := admins.Grant(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to grant admin: %w", err)
		}
		slog.Info("admin granted", slog.String("user_id", user.ID))
		return nil
	}

	if err := admins.Revoke(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke admin: %w", err)
	}
	slog.Info("admin revoked", slog.String("user_id", user.ID))
	return nil
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SessionStore はセッションの保存先を表す。
type SessionStore string

const (
	// SessionStorePostgres はsessionsテーブルにセッションを保存する。
	SessionStorePostgres SessionStore = "postgres"
	// SessionStoreRedis はRedisにセッションを保存する。
	SessionStoreRedis SessionStore = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL             string
	DatabaseConnectAttempts int
	DatabaseMaxOpenConns    int

	// Session
	SessionMaxAge int // 秒
	SessionStore  SessionStore
	RedisURL      string

	// Recovery
	RecoveryTokenTTL      time.Duration
	RecoverySessionTTL    time.Duration
	RecoveryRedirectDelay time.Duration

	// Rate Limit（req/min/client）
	RateLimitGeneral   int
	RateLimitSensitive int

	// Cleanup
	CleanupInterval time.Duration

	// Promo（0以下の場合、表示記録はプロセス終了まで保持する）
	PromoTTL time.Duration
	// 記録する訪問者数の上限（超えると最も古い記録から捨てる）
	PromoMaxVisitors int

	// Server
	ServerPort  string
	BaseURL     string
	DefaultLang string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.SessionStore = SessionStore(strings.ToLower(getEnvString("SESSION_STORE", string(SessionStorePostgres))))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.SessionStore != SessionStorePostgres && cfg.SessionStore != SessionStoreRedis {
		return nil, fmt.Errorf("invalid SESSION_STORE %q (must be postgres or redis)", cfg.SessionStore)
	}

	cfg.DatabaseConnectAttempts = getEnvInt("DATABASE_CONNECT_ATTEMPTS", 5)
	cfg.DatabaseMaxOpenConns = getEnvInt("DATABASE_MAX_OPEN_CONNS", 20)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RecoveryTokenTTL = getEnvDuration("RECOVERY_TOKEN_TTL", time.Hour)
	cfg.RecoverySessionTTL = getEnvDuration("RECOVERY_SESSION_TTL", 15*time.Minute)
	cfg.RecoveryRedirectDelay = getEnvDuration("RECOVERY_REDIRECT_DELAY", 3*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSensitive = getEnvInt("RATE_LIMIT_SENSITIVE", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.PromoTTL = getEnvDuration("PROMO_TTL", 0)
	cfg.PromoMaxVisitors = getEnvInt("PROMO_MAX_VISITORS", 100000)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.DefaultLang = getEnvString("DEFAULT_LANG", "en")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

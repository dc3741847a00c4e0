// Package session はRedisを使用したセッションストアを提供する。
// SESSION_STORE=redis のときにPostgreSQL実装の代わりに使用する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/summit/internal/model"
	"github.com/hitoshi/summit/internal/repository"
	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisにセッションを保存するSessionRepository実装。
// セッション本体は "session:<id>" にJSONで保存し、TTLで失効させる。
// ユーザーごとのセッションIDは "user_sessions:<user_id>" のセットで管理する。
type RedisStore struct {
	client     *redis.Client
	prefix     string
	userPrefix string
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     "session:",
		userPrefix: "user_sessions:",
	}
}

// NewClient はREDIS_URL形式のURLからクライアントを生成し、疎通を確認する。
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) userKey(userID string) string {
	return r.userPrefix + userID
}

// record はRedisに保存するセッションの表現。
type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Create はセッションを保存する。
func (r *RedisStore) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("session: missing id or user_id")
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(record{
		ID:        s.ID,
		UserID:    s.UserID,
		Kind:      string(s.Kind),
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(s.ID), data, ttl)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
	// ユーザーセットはそのユーザーの最長セッションより長く残ればよい
	pipe.ExpireGT(ctx, r.userKey(s.UserID), ttl)
	pipe.ExpireNX(ctx, r.userKey(s.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID はセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *RedisStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	if !rec.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Kind:      model.SessionKind(rec.Kind),
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// DeleteByID はセッションを削除する。
func (r *RedisStore) DeleteByID(ctx context.Context, id string) error {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(id))
	if s != nil {
		pipe.SRem(ctx, r.userKey(s.UserID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}
	keys = append(keys, r.userKey(userID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

var _ repository.SessionRepository = (*RedisStore)(nil)

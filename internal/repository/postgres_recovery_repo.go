package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/summit/internal/model"
)

// PostgresRecoveryTokenRepo はrecovery_tokensテーブルを扱うリポジトリ。
type PostgresRecoveryTokenRepo struct {
	db *sql.DB
}

// NewPostgresRecoveryTokenRepo はPostgresRecoveryTokenRepoを生成する。
func NewPostgresRecoveryTokenRepo(db *sql.DB) *PostgresRecoveryTokenRepo {
	return &PostgresRecoveryTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresRecoveryTokenRepo) Create(ctx context.Context, token *model.RecoveryToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create recovery token: %w", err)
	}
	return nil
}

// Consume は未使用かつ有効期限内のトークンを1文のUPDATEで使用済みにする。
// 同じトークンを同時に消費しても成功するのは1回だけ。
func (r *PostgresRecoveryTokenRepo) Consume(ctx context.Context, tokenHash string) (*model.RecoveryToken, error) {
	token := &model.RecoveryToken{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`UPDATE recovery_tokens
		 SET used_at = now()
		 WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
		 RETURNING id, user_id, token_hash, expires_at, used_at, created_at`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &usedAt, &token.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume recovery token: %w", err)
	}
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	return token, nil
}

var _ RecoveryTokenRepository = (*PostgresRecoveryTokenRepo)(nil)

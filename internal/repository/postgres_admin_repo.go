package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/summit/internal/model"
)

// PostgresAdminRepo はadminsテーブルを扱うリポジトリ。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// FindByUserID は指定ユーザーの管理者行を取得する。存在しない場合はnilを返す。
func (r *PostgresAdminRepo) FindByUserID(ctx context.Context, userID string) (*model.AdminRecord, error) {
	rec := &model.AdminRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, created_at FROM admins WHERE user_id = $1`,
		userID,
	).Scan(&rec.UserID, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	return rec, nil
}

// Grant は管理者行を作成する。既に存在する場合は何もしない。
func (r *PostgresAdminRepo) Grant(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant admin: %w", err)
	}
	return nil
}

// Revoke は管理者行を削除する。
func (r *PostgresAdminRepo) Revoke(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke admin: %w", err)
	}
	return nil
}

var _ AdminRepository = (*PostgresAdminRepo)(nil)

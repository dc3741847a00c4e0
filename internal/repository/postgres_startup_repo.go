package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/summit/internal/model"
)

// PostgresStartupRepo はstartupsテーブルを扱うリポジトリ。
type PostgresStartupRepo struct {
	db *sql.DB
}

// NewPostgresStartupRepo はPostgresStartupRepoを生成する。
func NewPostgresStartupRepo(db *sql.DB) *PostgresStartupRepo {
	return &PostgresStartupRepo{db: db}
}

// ListApproved は承認済みのスタートアップを公開用の射影で返す。
// 承認条件はWHERE句で評価し、未承認の行は転送しない。並び順はDBに委ねる。
func (r *PostgresStartupRepo) ListApproved(ctx context.Context) ([]model.Startup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, stage, description, domain, earning_status, is_approved
		 FROM startups
		 WHERE is_approved = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved startups: %w", err)
	}
	defer rows.Close()

	var startups []model.Startup
	for rows.Next() {
		var s model.Startup
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.Stage, &s.Description, &s.Domain, &s.EarningStatus, &s.IsApproved); err != nil {
			return nil, fmt.Errorf("failed to scan startup: %w", err)
		}
		startups = append(startups, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate startups: %w", err)
	}
	return startups, nil
}

// ListPending は未承認の応募を古い順に返す。管理画面用で全カラムを含む。
func (r *PostgresStartupRepo) ListPending(ctx context.Context) ([]model.Startup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, stage, description, domain, earning_status,
		        website, contact_email, reference, is_approved, created_at, approved_at
		 FROM startups
		 WHERE is_approved = false
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending startups: %w", err)
	}
	defer rows.Close()

	var startups []model.Startup
	for rows.Next() {
		s, err := scanFullStartup(rows)
		if err != nil {
			return nil, err
		}
		startups = append(startups, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate startups: %w", err)
	}
	return startups, nil
}

// Create は応募を未承認状態で作成する。
func (r *PostgresStartupRepo) Create(ctx context.Context, s *model.Startup) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO startups
		   (display_name, stage, description, domain, earning_status, website, contact_email, reference, is_approved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
		 RETURNING id, created_at`,
		s.DisplayName, s.Stage, s.Description, s.Domain, s.EarningStatus, s.Website, s.ContactEmail, s.Reference,
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert startup: %w", err)
	}
	s.IsApproved = false
	return nil
}

// Approve は応募を承認する。既に承認済みの場合はそのまま返す。見つからない場合はnilを返す。
func (r *PostgresStartupRepo) Approve(ctx context.Context, id int64) (*model.Startup, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE startups
		 SET is_approved = true, approved_at = COALESCE(approved_at, now())
		 WHERE id = $1
		 RETURNING id, display_name, stage, description, domain, earning_status,
		           website, contact_email, reference, is_approved, created_at, approved_at`,
		id,
	)
	s, err := scanFullStartup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountByApproval は承認済み件数と未承認件数を返す。
func (r *PostgresStartupRepo) CountByApproval(ctx context.Context) (int, int, error) {
	var approved, pending int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FILTER (WHERE is_approved), count(*) FILTER (WHERE NOT is_approved)
		 FROM startups`,
	).Scan(&approved, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count startups: %w", err)
	}
	return approved, pending, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFullStartup(row rowScanner) (*model.Startup, error) {
	var s model.Startup
	var approvedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.DisplayName, &s.Stage, &s.Description, &s.Domain, &s.EarningStatus,
		&s.Website, &s.ContactEmail, &s.Reference, &s.IsApproved, &s.CreatedAt, &approvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan startup: %w", err)
	}
	if approvedAt.Valid {
		s.ApprovedAt = &approvedAt.Time
	}
	return &s, nil
}

var _ StartupRepository = (*PostgresStartupRepo)(nil)

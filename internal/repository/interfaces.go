// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/summit/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// PostgreSQL実装とRedis実装がある。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// AdminRepository は管理者リレーションの永続化インターフェース。
type AdminRepository interface {
	// FindByUserID は指定ユーザーの管理者行を取得する。存在しない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.AdminRecord, error)
	// Grant は管理者行を作成する。既に存在する場合は何もしない。
	Grant(ctx context.Context, userID string) error
	// Revoke は管理者行を削除する。
	Revoke(ctx context.Context, userID string) error
}

// StartupRepository はスタートアップの永続化インターフェース。
type StartupRepository interface {
	// ListApproved は is_approved = true の行のみを公開用の射影で返す。
	ListApproved(ctx context.Context) ([]model.Startup, error)
	// ListPending は未承認の応募を古い順に返す。
	ListPending(ctx context.Context) ([]model.Startup, error)
	// Create は応募を未承認状態で作成し、採番されたIDと作成日時を設定する。
	// 同じ連絡先から同名の応募がある場合はErrDuplicateを返す。
	Create(ctx context.Context, startup *model.Startup) error
	// Approve は応募を承認する。見つからない場合はnilを返す。
	Approve(ctx context.Context, id int64) (*model.Startup, error)
	// CountByApproval は承認済み件数と未承認件数を返す。
	CountByApproval(ctx context.Context) (approved int, pending int, err error)
}

// RecoveryTokenRepository はパスワード再設定トークンの永続化インターフェース。
type RecoveryTokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.RecoveryToken) error
	// Consume は未使用かつ有効期限内のトークンを使用済みにして返す。
	// 該当するトークンがない場合（未知・期限切れ・使用済み）はnilを返す。
	Consume(ctx context.Context, tokenHash string) (*model.RecoveryToken, error)
}

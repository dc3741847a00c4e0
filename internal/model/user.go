// Package model はドメインモデルを定義する。
package model

import "time"

// User はサイトにサインインできるアカウントを表す。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionKind はセッションの発行経路を表す。
type SessionKind string

const (
	// SessionKindStandard はパスワードでのサインインにより発行されたセッション。
	SessionKindStandard SessionKind = "standard"
	// SessionKindRecovery はパスワード再設定リンクの検証により発行された一時セッション。
	SessionKindRecovery SessionKind = "recovery"
)

// Session は認証済みプリンシパルを表す。
// 有効性（expires_at > now）の判定はデータサービス側のみが行う。
type Session struct {
	ID        string
	UserID    string
	Kind      SessionKind
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsRecovery はパスワード再設定用の一時セッションかどうかを返す。
func (s *Session) IsRecovery() bool {
	return s != nil && s.Kind == SessionKindRecovery
}

// AdminRecord は管理者権限を持つユーザーを表す。
// 行が存在することだけが管理者判定の条件となる。
type AdminRecord struct {
	UserID    string
	CreatedAt time.Time
}

package model

import "time"

// RecoveryToken はパスワード再設定のための一回限りの許可を表す。
// 平文トークンは保存せず、SHA-256ハッシュのみを保持する。
type RecoveryToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

package auth

import "errors"

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っていることを表す。
	// どちらが誤っていたかは区別しない。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRecoveryExpired はパスワード再設定トークンが期限切れ・使用済み・不明であることを表す。
	ErrRecoveryExpired = errors.New("recovery token is invalid or expired")
	// ErrEmailTaken は登録済みのメールアドレスであることを表す。
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordTooShort はパスワードが短すぎることを表す。
	ErrPasswordTooShort = &UserError{Message: "Password must be at least 6 characters."}
	// ErrPasswordTooLong はパスワードがbcryptで扱える72バイトを超えていることを表す。
	ErrPasswordTooLong = &UserError{Message: "Password must be at most 72 bytes."}
	// ErrSessionExpired はセッションが存在しないか期限切れであることを表す。
	ErrSessionExpired = &UserError{Message: "Your session has expired. Please request a new password reset link."}
)

// UserError はそのまま利用者に表示できるメッセージを持つエラー。
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// UserMessage は利用者向けメッセージを返す。
func (e *UserError) UserMessage() string {
	return e.Message
}

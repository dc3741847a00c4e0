package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, startup, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated        = "UNAUTHENTICATED"
	ErrCodeFetchFailed            = "FETCH_FAILED"
	ErrCodeInvalidApplication     = "INVALID_APPLICATION"
	ErrCodeDuplicateApplication   = "DUPLICATE_APPLICATION"
	ErrCodeStartupNotFound        = "STARTUP_NOT_FOUND"
	ErrCodeRecoveryLinkInvalid    = "RECOVERY_LINK_INVALID"
	ErrCodeCredentialUpdateFailed = "CREDENTIAL_UPDATE_FAILED"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
)

// NewInvalidCredentialsError はサインイン失敗エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "You are not signed in.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewFetchFailedError は一覧取得失敗エラーを生成する。
// サービス側のエラー文言は含めない。
func NewFetchFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  message,
		Category: "startup",
		Action:   "Reload the page to try again.",
	}
}

// NewInvalidApplicationError は応募内容の検証エラーを生成する。
func NewInvalidApplicationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidApplication,
		Message:  fmt.Sprintf("The application is invalid: %s", reason),
		Category: "validation",
		Action:   "Correct the highlighted field and submit again.",
	}
}

// NewDuplicateApplicationError は同じ連絡先から同名の応募が既にある場合のエラーを生成する。
func NewDuplicateApplicationError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateApplication,
		Message:  "An application for this startup has already been submitted.",
		Category: "startup",
		Action:   "Wait for the review of your existing application.",
	}
}

// NewStartupNotFoundError はスタートアップが見つからない場合のエラーを生成する。
func NewStartupNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeStartupNotFound,
		Message:  fmt.Sprintf("Startup not found: %d", id),
		Category: "startup",
		Action:   "Check the startup ID.",
	}
}

// NewCredentialUpdateFailedError はパスワード更新失敗エラーを生成する。
func NewCredentialUpdateFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeCredentialUpdateFailed,
		Message:  message,
		Category: "auth",
		Action:   "Request a new password reset link.",
	}
}

// NewInvalidRequestError はリクエスト形式の誤りを表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request body and try again.",
	}
}

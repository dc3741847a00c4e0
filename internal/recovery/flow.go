package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	// ErrWeakPassword はパスワードが短すぎることを表す。
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrPasswordTooLong はパスワードがハッシュ化できる長さを超えていることを表す。
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrMismatch は確認用パスワードが一致しないことを表す。
	ErrMismatch = errors.New("passwords do not match")
	// ErrBusy は同じセッションで送信処理中であることを表す。
	ErrBusy = errors.New("a submission is already in progress")
	// ErrNotReady はReady以外の状態で送信されたことを表す。
	ErrNotReady = errors.New("recovery flow is not ready")
)

// MinPasswordLength はパスワードの最小文字数（バイト数ではなく文字数）。
const MinPasswordLength = 6

// MaxPasswordBytes はパスワードの最大バイト数。bcryptはこれを超える入力を受け付けない。
const MaxPasswordBytes = 72

// CredentialUpdater は確立済みセッションでパスワードを更新する。
type CredentialUpdater interface {
	UpdateCredential(ctx context.Context, sessionID, newPassword string) error
}

// SessionRevoker は失敗したフローのセッションを破棄する。
type SessionRevoker interface {
	RevokeSession(ctx context.Context, sessionID string)
}

// Recorder は送信結果を記録する。
type Recorder interface {
	RecordRecoverySubmission(result string)
}

// Outcome は送信の結果。
type Outcome struct {
	State         State
	RedirectTo    string
	RedirectAfter time.Duration
}

// Flow は新しいパスワードの送信を扱う。
// 同じセッションでの二重送信は処理中の送信が終わるまでErrBusyで拒否する。
type Flow struct {
	updater       CredentialUpdater
	revoker       SessionRevoker
	recorder      Recorder
	inflight      sync.Map // sessionID -> struct{}
	redirectDelay time.Duration
	landing       string
}

// Option はFlowのオプション。
type Option func(*Flow)

// WithRevoker は失敗時にセッションを破棄するSessionRevokerを設定する。
func WithRevoker(r SessionRevoker) Option {
	return func(f *Flow) { f.revoker = r }
}

// WithRecorder は送信結果のRecorderを設定する。
func WithRecorder(r Recorder) Option {
	return func(f *Flow) { f.recorder = r }
}

// WithRedirectDelay は成功後の遷移までの待ち時間を設定する。
func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) { f.redirectDelay = d }
}

// NewFlow はFlowを生成する。
func NewFlow(updater CredentialUpdater, opts ...Option) *Flow {
	f := &Flow{
		updater:       updater,
		redirectDelay: 3 * time.Second,
		landing:       "/",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Validate は入力を順に検証する。サービスは呼び出さない。
func Validate(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if password != confirm {
		return ErrMismatch
	}
	return nil
}

// Submit は新しいパスワードを送信する。
// 検証エラー・ErrBusy・ErrNotReadyの場合はstateをそのまま含むOutcomeとエラーを返し、
// サービスは呼び出さない。サービスの失敗はエラーではなくInvalid状態として返す。
func (f *Flow) Submit(ctx context.Context, sessionID string, state State, password, confirm string) (Outcome, error) {
	if state.Kind != Ready {
		return Outcome{State: state}, ErrNotReady
	}
	if err := Validate(password, confirm); err != nil {
		f.record("validation_failed")
		return Outcome{State: state}, err
	}

	if _, busy := f.inflight.LoadOrStore(sessionID, struct{}{}); busy {
		return Outcome{State: state}, ErrBusy
	}
	defer f.inflight.Delete(sessionID)

	if err := f.updater.UpdateCredential(ctx, sessionID, password); err != nil {
		slog.Warn("credential update failed", slog.String("error", err.Error()))
		f.record("failed")
		if f.revoker != nil {
			f.revoker.RevokeSession(ctx, sessionID)
		}
		return Outcome{State: State{Kind: Invalid, Message: userMessage(err)}}, nil
	}

	f.record("success")
	return Outcome{
		State:         State{Kind: Success, Message: SuccessMessage},
		RedirectTo:    f.landing,
		RedirectAfter: f.redirectDelay,
	}, nil
}

func (f *Flow) record(result string) {
	if f.recorder != nil {
		f.recorder.RecordRecoverySubmission(result)
	}
}

// userMessage はエラーが利用者向けメッセージを持っていればそれを、なければ汎用メッセージを返す。
func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return GenericFailureMessage
}

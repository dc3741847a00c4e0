package recovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockUpdater struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, sessionID, password string) error
}

func (m *mockUpdater) UpdateCredential(ctx context.Context, sessionID, password string) error {
	m.mu.Lock()
	m.calls = append(m.calls, password)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, sessionID, password)
	}
	return nil
}

func (m *mockUpdater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockRevoker struct {
	revoked []string
}

func (m *mockRevoker) RevokeSession(_ context.Context, sessionID string) {
	m.revoked = append(m.revoked, sessionID)
}

type mockRecorder struct {
	results []string
}

func (m *mockRecorder) RecordRecoverySubmission(result string) {
	m.results = append(m.results, result)
}

var readyState = State{Kind: Ready}

// 6文字未満のパスワードではUpdateCredentialを呼ばないこと
func TestSubmit_WeakPassword_NoServiceCall(t *testing.T) {
	for _, pw := range []string{"", "a", "abcde"} {
		updater := &mockUpdater{}
		flow := NewFlow(updater)

		out, err := flow.Submit(context.Background(), "s-1", readyState, pw, pw)
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("password %q: err = %v, want ErrWeakPassword", pw, err)
		}
		if out.State.Kind != Ready {
			t.Errorf("password %q: state = %v, want Ready", pw, out.State.Kind)
		}
		if updater.callCount() != 0 {
			t.Errorf("password %q: UpdateCredential called %d times, want 0", pw, updater.callCount())
		}
	}
}

// 確認用パスワードが一致しない場合はUpdateCredentialを呼ばないこと
func TestSubmit_Mismatch_NoServiceCall(t *testing.T) {
	updater := &mockUpdater{}
	flow := NewFlow(updater)

	out, err := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdeg")
	if !errors.Is(err, ErrMismatch) {
		t.Errorf("err = %v, want ErrMismatch", err)
	}
	if out.State.Kind != Ready {
		t.Errorf("state = %v, want Ready", out.State.Kind)
	}
	if updater.callCount() != 0 {
		t.Errorf("UpdateCredential called %d times, want 0", updater.callCount())
	}
}

// 72バイトを超えるパスワードではUpdateCredentialを呼ばず、フォームを編集可能なままにすること
func TestSubmit_TooLongPassword_NoServiceCall(t *testing.T) {
	updater := &mockUpdater{}
	revoker := &mockRevoker{}
	flow := NewFlow(updater, WithRevoker(revoker))

	pw := strings.Repeat("a", 80)
	out, err := flow.Submit(context.Background(), "s-1", readyState, pw, pw)
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}
	if out.State.Kind != Ready {
		t.Errorf("state = %v, want Ready", out.State.Kind)
	}
	if updater.callCount() != 0 {
		t.Errorf("UpdateCredential called %d times, want 0", updater.callCount())
	}
	if len(revoker.revoked) != 0 {
		t.Errorf("session should not be revoked, revoked = %v", revoker.revoked)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{"6文字", "abcdef", "abcdef", nil},
		{"マルチバイトは文字数で数える", "ééé", "ééé", ErrWeakPassword},
		{"マルチバイト6文字", "éééééé", "éééééé", nil},
		{"72バイトちょうど", strings.Repeat("a", 72), strings.Repeat("a", 72), nil},
		{"73バイト", strings.Repeat("a", 73), strings.Repeat("a", 73), ErrPasswordTooLong},
		{"長さは不一致より先に判定", strings.Repeat("a", 73), "abcdef", ErrPasswordTooLong},
		{"マルチバイトで72バイト超過", strings.Repeat("é", 37), strings.Repeat("é", 37), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.password, tt.confirm); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmit_WeakPasswordCheckedBeforeMismatch(t *testing.T) {
	flow := NewFlow(&mockUpdater{})
	_, err := flow.Submit(context.Background(), "s-1", readyState, "abc", "xyz")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}
}

func TestSubmit_NotReady(t *testing.T) {
	updater := &mockUpdater{}
	flow := NewFlow(updater)

	for _, st := range []State{{Kind: Checking}, {Kind: Invalid, Message: ExpiredMessage}, {Kind: Success}} {
		out, err := flow.Submit(context.Background(), "s-1", st, "abcdef", "abcdef")
		if !errors.Is(err, ErrNotReady) {
			t.Errorf("state %v: err = %v, want ErrNotReady", st.Kind, err)
		}
		if out.State != st {
			t.Errorf("state changed to %+v", out.State)
		}
	}
	if updater.callCount() != 0 {
		t.Errorf("UpdateCredential called %d times, want 0", updater.callCount())
	}
}

// type=recovery のフラグメントから送信まで: 1回だけ更新され、Successと3秒後の遷移になること
func TestSubmit_RecoveryFragmentToSuccess(t *testing.T) {
	updater := &mockUpdater{}
	recorder := &mockRecorder{}
	flow := NewFlow(updater, WithRecorder(recorder))

	state := Derive(ParseFragment("type=recovery"))
	out, err := flow.Submit(context.Background(), "s-1", state, "abcdef", "abcdef")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if updater.callCount() != 1 || updater.calls[0] != "abcdef" {
		t.Errorf("UpdateCredential calls = %v, want [abcdef]", updater.calls)
	}
	if out.State.Kind != Success || out.State.Message != SuccessMessage {
		t.Errorf("state = %+v, want Success", out.State)
	}
	if out.RedirectTo != "/" || out.RedirectAfter != 3*time.Second {
		t.Errorf("redirect = %q after %v, want / after 3s", out.RedirectTo, out.RedirectAfter)
	}
	if len(recorder.results) != 1 || recorder.results[0] != "success" {
		t.Errorf("recorded = %v, want [success]", recorder.results)
	}
}

func TestSubmit_ServiceFailure_BecomesInvalid(t *testing.T) {
	updater := &mockUpdater{
		fn: func(_ context.Context, _, _ string) error {
			return errors.New("connection refused")
		},
	}
	revoker := &mockRevoker{}
	flow := NewFlow(updater, WithRevoker(revoker))

	out, err := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
	if err != nil {
		t.Fatalf("Submit() error = %v, want nil", err)
	}
	if out.State.Kind != Invalid {
		t.Errorf("state = %v, want Invalid", out.State.Kind)
	}
	if out.State.Message != GenericFailureMessage {
		t.Errorf("message = %q, want generic message (raw error must not leak)", out.State.Message)
	}
	if out.RedirectTo != "" {
		t.Errorf("RedirectTo = %q, want empty", out.RedirectTo)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != "s-1" {
		t.Errorf("revoked = %v, want [s-1]", revoker.revoked)
	}
}

type userFacingErr struct{ msg string }

func (e *userFacingErr) Error() string       { return "internal: " + e.msg }
func (e *userFacingErr) UserMessage() string { return e.msg }

func TestSubmit_ServiceFailure_UsesUserMessage(t *testing.T) {
	updater := &mockUpdater{
		fn: func(_ context.Context, _, _ string) error {
			return &userFacingErr{msg: "Your session has expired."}
		},
	}
	flow := NewFlow(updater)

	out, _ := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
	if out.State.Message != "Your session has expired." {
		t.Errorf("message = %q, want the service's user message", out.State.Message)
	}
}

// 処理中の送信がある間の2回目の送信は何もせずErrBusyを返すこと
func TestSubmit_ConcurrentSubmitIsNoOp(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	updater := &mockUpdater{
		fn: func(_ context.Context, _, _ string) error {
			close(entered)
			<-release
			return nil
		},
	}
	flow := NewFlow(updater)

	done := make(chan Outcome)
	go func() {
		out, _ := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
		done <- out
	}()
	<-entered

	_, err := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second submit err = %v, want ErrBusy", err)
	}

	close(release)
	if out := <-done; out.State.Kind != Success {
		t.Errorf("first submit state = %v, want Success", out.State.Kind)
	}
	if updater.callCount() != 1 {
		t.Errorf("UpdateCredential called %d times, want 1", updater.callCount())
	}
}

func TestSubmit_DifferentSessionsAreIndependent(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	updater := &mockUpdater{
		fn: func(_ context.Context, sessionID, _ string) error {
			if sessionID == "s-1" {
				once.Do(func() { close(entered) })
				<-release
			}
			return nil
		},
	}
	flow := NewFlow(updater)

	go flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
	<-entered

	if _, err := flow.Submit(context.Background(), "s-2", readyState, "abcdef", "abcdef"); err != nil {
		t.Errorf("s-2 submit err = %v, want nil", err)
	}
	close(release)
}

func TestWithRedirectDelay(t *testing.T) {
	flow := NewFlow(&mockUpdater{}, WithRedirectDelay(time.Second))
	out, err := flow.Submit(context.Background(), "s-1", readyState, "abcdef", "abcdef")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.RedirectAfter != time.Second {
		t.Errorf("RedirectAfter = %v, want 1s", out.RedirectAfter)
	}
}

package recovery

// Kind は再設定フローの状態。
type Kind int

const (
	// Checking はパラメータが未確定の状態。
	Checking Kind = iota
	// Ready は新しいパスワードを入力できる状態。
	Ready
	// Invalid はリンクが無効か更新に失敗した状態。終端。
	Invalid
	// Success はパスワードの更新が完了した状態。終端。
	Success
)

func (k Kind) String() string {
	switch k {
	case Checking:
		return "checking"
	case Ready:
		return "ready"
	case Invalid:
		return "invalid"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

const (
	// ExpiredMessage はotp_expiredのときに表示する固定メッセージ。
	ExpiredMessage = "The password reset link is invalid or has expired. Please request a new one."
	// GenericInvalidMessage はerror_descriptionがない場合などの汎用メッセージ。
	GenericInvalidMessage = "This password reset link is not valid. Please request a new one."
	// SuccessMessage は更新完了時のメッセージ。
	SuccessMessage = "Your password has been updated successfully."
	// GenericFailureMessage は更新失敗時にサービスのメッセージがない場合の汎用メッセージ。
	GenericFailureMessage = "We could not update your password. Please request a new reset link."

	codeOTPExpired = "otp_expired"
	typeRecovery   = "recovery"
)

// State は再設定フローの状態とその表示メッセージ。
type State struct {
	Kind    Kind
	Message string
}

// Derive はパラメータから初期状態を導出する純粋関数。
//   - error_code == "otp_expired" は他のキーに関係なくInvalid（固定メッセージ）
//   - type == "recovery" はReady
//   - それ以外のerror_codeはInvalid（error_descriptionまたは汎用メッセージ）
//   - いずれにも該当しない場合はChecking
func Derive(p Params) State {
	switch {
	case p.ErrorCode == codeOTPExpired:
		return State{Kind: Invalid, Message: ExpiredMessage}
	case p.Type == typeRecovery:
		return State{Kind: Ready}
	case p.ErrorCode != "":
		msg := p.ErrorDescription
		if msg == "" {
			msg = GenericInvalidMessage
		}
		return State{Kind: Invalid, Message: msg}
	default:
		return State{Kind: Checking}
	}
}

// Settle はChecking状態を確定させる。
// フラグメントが転送済みでも認識できるパラメータがない場合、Checkingのままにせず
// 汎用メッセージのInvalidにする。それ以外の状態はそのまま返す。
func (s State) Settle() State {
	if s.Kind != Checking {
		return s
	}
	return State{Kind: Invalid, Message: GenericInvalidMessage}
}

// Terminal は終端状態かどうかを返す。
func (s State) Terminal() bool {
	return s.Kind == Invalid || s.Kind == Success
}

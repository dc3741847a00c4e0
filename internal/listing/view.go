package listing

import "github.com/hitoshi/summit/internal/model"

// Status は一覧の表示状態。4つの状態は互いに排他的。
type Status string

const (
	StatusLoading   Status = "loading"
	StatusError     Status = "error"
	StatusEmpty     Status = "empty"
	StatusPopulated Status = "populated"
)

// SkeletonCount は読み込み中に表示するプレースホルダーの数。
const SkeletonCount = 6

// View は一覧の表示内容。メッセージ文言は持たず、表示時にi18nで解決する。
type View struct {
	Status    Status
	Startups  []model.Startup
	Skeletons int
	Lang      string
}

// LoadingView は読み込み中のViewを返す。
func LoadingView(lang string) View {
	return View{Status: StatusLoading, Skeletons: SkeletonCount, Lang: lang}
}

// Resolve は取得結果からViewを組み立てる。errの内容はViewに含めない。
func Resolve(startups []model.Startup, err error, lang string) View {
	switch {
	case err != nil:
		return View{Status: StatusError, Lang: lang}
	case len(startups) == 0:
		return View{Status: StatusEmpty, Lang: lang}
	default:
		return View{Status: StatusPopulated, Startups: startups, Lang: lang}
	}
}

// MessageKey は状態に対応するi18nキーを返す。Populatedの場合は空文字。
func (v View) MessageKey() string {
	switch v.Status {
	case StatusLoading:
		return "listing.loading"
	case StatusError:
		return "listing.error"
	case StatusEmpty:
		return "listing.empty"
	default:
		return ""
	}
}

// SkeletonSlots はテンプレートのrange用に長さSkeletonsのスライスを返す。
func (v View) SkeletonSlots() []struct{} {
	return make([]struct{}, v.Skeletons)
}

package handler

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hitoshi/summit/internal/model"
)

// startupResponse は公開一覧の1件分のレスポンス。公開用の射影のみを含む。
type startupResponse struct {
	ID            int64  `json:"id"`
	DisplayName   string `json:"display_name"`
	Stage         string `json:"stage"`
	Description   string `json:"description"`
	Domain        string `json:"domain"`
	EarningStatus string `json:"earning_status"`
	IsApproved    bool   `json:"is_approved"`
}

// pendingStartupResponse は管理画面向けの応募1件分のレスポンス。
type pendingStartupResponse struct {
	startupResponse
	Website      string     `json:"website,omitempty"`
	ContactEmail string     `json:"contact_email"`
	Reference    string     `json:"reference"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

func toStartupResponse(s model.Startup) startupResponse {
	return startupResponse{
		ID:            s.ID,
		DisplayName:   s.DisplayName,
		Stage:         s.Stage,
		Description:   s.Description,
		Domain:        s.Domain,
		EarningStatus: s.EarningStatus,
		IsApproved:    s.IsApproved,
	}
}

func toPendingStartupResponse(s model.Startup) pendingStartupResponse {
	return pendingStartupResponse{
		startupResponse: toStartupResponse(s),
		Website:         s.Website,
		ContactEmail:    s.ContactEmail,
		Reference:       s.Reference,
		CreatedAt:       s.CreatedAt,
		ApprovedAt:      s.ApprovedAt,
	}
}

func jsonEncode(w io.Writer, body any) error {
	return json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをJSONとして読み取る。未知のフィールドは拒否する。
func decodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// maxJSONBodyBytes はJSONリクエストボディの上限サイズ。
const maxJSONBodyBytes = 64 << 10

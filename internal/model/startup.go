package model

import "time"

// Startup は審査対象のスタートアッププロフィールを表す。
// 応募フォームから未承認状態で作成され、管理者の承認で公開一覧に載る。
type Startup struct {
	ID            int64
	DisplayName   string
	Stage         string
	Description   string
	Domain        string
	EarningStatus string
	Website       string
	ContactEmail  string
	Reference     string
	IsApproved    bool
	CreatedAt     time.Time
	ApprovedAt    *time.Time
}

// StartupStages は応募フォームで受け付ける資金調達ステージ。
var StartupStages = []string{"idea", "pre-seed", "seed", "series-a", "series-b", "growth"}

// EarningStatuses は応募フォームで受け付ける収益状況。
var EarningStatuses = []string{"pre-revenue", "revenue", "profitable"}

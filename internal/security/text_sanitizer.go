// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は応募フォームなど利用者が入力したテキストからHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去し、平文として保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は入力テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグ・属性を除去し、前後の空白を取り除いた平文を返す。
	// script, styleの中身も除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。ポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLを除去した平文を返す。
// StrictPolicyはテキストをエスケープして出力するため、保存前に戻す。
// 表示時のエスケープはhtml/templateが行う。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

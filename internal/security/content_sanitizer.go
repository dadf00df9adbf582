// Package security はユーザー入力コンテンツの無害化を提供する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はリスト・タスクの説明文を無害化する。
// 説明文は他のコラボレーターの画面にそのまま描画されるため、
// 保存前にHTMLタグとスクリプトを除去する。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// StrictPolicyを使用し、すべてのHTML要素を除去する。
func NewContentSanitizer() *ContentSanitizer {
	return &ContentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列からHTMLを除去し、前後の空白を取り除いて返す。
func (s *ContentSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}

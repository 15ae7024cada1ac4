package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力や外部フィードの文字列からマークアップを取り除く。
// プロジェクト名、招待メモ、請求先情報、リリースノート要約はすべてプレーンテキストとして保存・返却する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicy（全タグ除去）のTextSanitizerを生成する。
// bluemonday.Policyは生成後の並行利用が安全。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// StripText はタグを除去し、エスケープされた実体参照を戻して前後の空白を詰める。
func (s *TextSanitizer) StripText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// StripAll はポインタが指す各文字列をその場でStripTextする。
func (s *TextSanitizer) StripAll(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = s.StripText(*f)
		}
	}
}

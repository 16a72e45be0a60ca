// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer は管理画面から登録されるアセット説明文のHTMLをサニタイズし、
// カタログ閲覧者をXSSから保護する。
// bluemondayの許可リストポリシーで、書式用の安全なタグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// DescriptionSanitizer はアセット説明文のサニタイザー。
// ポリシーは生成後に変更しないため、並行して利用できる。
type DescriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, strong, em, blockquote, a
//   - aタグ: http/httpsの絶対URLのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - img, script, iframe, styleおよびon*属性は除去
func NewDescriptionSanitizer() *DescriptionSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "blockquote",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &DescriptionSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズし、前後の空白を取り除いて返す。
func (s *DescriptionSanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.policy.Sanitize(rawHTML))
}

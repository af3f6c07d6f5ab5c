// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述フィールド（ユーザー名、シフトのタイトル）から
// HTMLマークアップを除去し、プレーンテキストとして保存できるようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses はエスケープされたマークアップを再度除去する最大回数。
const maxPasses = 3

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize は入力から全てのHTML要素を除去し、実体参照を復元したテキストを返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す。
	Sanitize(s string) string
}

// textSanitizer はbluemondayのStrictPolicyによるTextSanitizerの実装。
// bluemonday.Policyは生成後の並行利用が安全。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTML要素を除去したプレーンテキストを返す。
// "&lt;b&gt;" のようにエスケープされたタグも、復元後に再度除去する。
func (s *textSanitizer) Sanitize(in string) string {
	out := in
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

var _ TextSanitizer = (*textSanitizer)(nil)

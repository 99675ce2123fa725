// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はアップストリームから取得した自由記述テキスト
// （リポジトリの説明、Issueタイトル等）からマークアップを除去する。
// bluemondayのStrictPolicyで全タグを取り除き、プレーンテキストとして返す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェースを定義する。
type TextSanitizer interface {
	// Clean は入力から全てのHTMLタグを除去したプレーンテキストを返す。
	// script, styleタグは内容ごと除去される。
	// 空文字列の入力には空文字列を返す。
	Clean(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean は入力から全てのHTMLタグを除去する。
// StrictPolicyはエンティティをエスケープして返すため、JSONで返却するプレーンテキスト用に戻す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// NopSanitizer は入力をそのまま返すTextSanitizer。テスト用。
type NopSanitizer struct{}

// Clean は入力をそのまま返す。
func (NopSanitizer) Clean(raw string) string { return raw }

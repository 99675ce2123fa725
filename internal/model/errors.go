// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, search, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeInvalidCredential   = "INVALID_CREDENTIAL"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidQuery        = "INVALID_QUERY"
	ErrCodeNoResults           = "NO_RESULTS"
	ErrCodeResourceNotFound    = "RESOURCE_NOT_FOUND"
	ErrCodeUpstreamRejected    = "UPSTREAM_REJECTED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewUnauthenticatedError は認証情報が提示されていない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "GitHubでログインしてください。",
	}
}

// NewInvalidCredentialError は認証情報が無効または期限切れの場合のエラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "認証情報が無効か期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidInputError は入力パラメータが不正な場合のエラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// NewInvalidQueryError は検索クエリが未指定の場合のエラーを生成する。
func NewInvalidQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  "検索クエリが指定されていません。",
		Category: "validation",
		Action:   "query パラメータに検索語を指定してください。",
	}
}

// NewNoResultsError は検索結果が0件の場合のエラーを生成する。
func NewNoResultsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoResults,
		Message:  "該当するリポジトリが見つかりません。",
		Category: "search",
		Action:   "別のキーワードで検索してください。",
	}
}

// NewResourceNotFoundError はアップストリームでリソースが見つからない場合のエラーを生成する。
func NewResourceNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeResourceNotFound,
		Message:  "指定されたリソースが見つかりません。",
		Category: "upstream",
		Action:   "リポジトリIDを確認してください。",
	}
}

// NewUpstreamRejectedError はアップストリームがリクエストを拒否した場合のエラーを生成する。
// アップストリームのレスポンス本文は含めない。
func NewUpstreamRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamRejected,
		Message:  "GitHubがリクエストを拒否しました。",
		Category: "upstream",
		Action:   "アクセス権限を確認するか、ログインし直してください。",
	}
}

// NewUpstreamUnavailableError はアップストリームに到達できない場合のエラーを生成する。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "GitHubに接続できません。",
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

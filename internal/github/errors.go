package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// アップストリームエラーの分類。*Error はこれらのいずれかをラップする。
var (
	// ErrUpstreamUnavailable はネットワーク障害・タイムアウト・5xx応答を表す。
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamRejected はアップストリームが認証・認可を拒否したことを表す。
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrNotFound はアップストリームにリソースが存在しないことを表す。
	ErrNotFound = errors.New("upstream resource not found")
)

// Error はアップストリーム呼び出しの失敗を表す。
// Status はクライアントへ返すべきHTTPステータス。アップストリームの本文は保持しない。
type Error struct {
	Kind     error
	Status   int
	Endpoint string
	Upstream int // アップストリームのステータスコード（応答がない場合は0）
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github %s: %v: %v", e.Endpoint, e.Kind, e.Err)
	}
	if e.Upstream != 0 {
		return fmt.Sprintf("github %s: %v (status %d)", e.Endpoint, e.Kind, e.Upstream)
	}
	return fmt.Sprintf("github %s: %v", e.Endpoint, e.Kind)
}

// Unwrap は分類と原因エラーの両方を返す。
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusOf はエラーに対応するHTTPステータスを返す。*Error でなければ0を返す。
func StatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Status
	}
	return 0
}

// transportError はリクエスト送信自体の失敗を分類する。
// タイムアウトは503、それ以外は502とする。
func transportError(endpoint string, err error) *Error {
	status := http.StatusBadGateway
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		status = http.StatusServiceUnavailable
	}
	return &Error{Kind: ErrUpstreamUnavailable, Status: status, Endpoint: endpoint, Err: err}
}

// statusError は2xx以外の応答を分類する。
func statusError(endpoint string, code int) *Error {
	e := &Error{Endpoint: endpoint, Upstream: code}
	switch {
	case code == http.StatusUnauthorized:
		e.Kind, e.Status = ErrUpstreamRejected, http.StatusUnauthorized
	case code == http.StatusNotFound:
		e.Kind, e.Status = ErrNotFound, http.StatusNotFound
	case code >= 400 && code < 500:
		e.Kind, e.Status = ErrUpstreamRejected, http.StatusForbidden
	case code == http.StatusServiceUnavailable:
		e.Kind, e.Status = ErrUpstreamUnavailable, http.StatusServiceUnavailable
	default:
		e.Kind, e.Status = ErrUpstreamUnavailable, http.StatusBadGateway
	}
	return e
}

// outcome はメトリクス用の結果ラベルを返す。
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamRejected):
		return "rejected"
	default:
		return "unavailable"
	}
}

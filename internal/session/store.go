// Package session はリクエストの認証情報の発行・検証・破棄を提供する。
//
// 2つの戦略があり、プロセスごとにどちらか一方のみを使用する。
//   - bearer: 署名付きトークンをAuthorizationヘッダーで受け取るステートレス方式
//   - cookie: サーバー側のセッションレコードをHTTP Only Cookieで参照するステートフル方式
//
// bearer戦略はCookieを読まず、cookie戦略はAuthorizationヘッダーを読まない。
package session

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/ghdash/internal/model"
)

// 戦略名。
const (
	StrategyCookie = "cookie"
	StrategyBearer = "bearer"
)

var (
	// ErrNoCredential は認証情報が提示されていないことを表す。
	ErrNoCredential = errors.New("no credential presented")
	// ErrInvalidCredential は提示されたトークンが不正または期限切れであることを表す。
	ErrInvalidCredential = errors.New("credential is invalid or expired")
	// ErrSessionNotFound はセッションレコードが存在しないか期限切れであることを表す。
	ErrSessionNotFound = errors.New("session not found or expired")
)

// Store は認証情報の発行・検証・破棄のインターフェース。
type Store interface {
	// Authenticate はリクエストの認証情報を検証し、Identityを返す。
	Authenticate(r *http.Request) (*model.Identity, error)
	// Establish はログイン成功時に認証情報を発行する。
	// 戻り値はランディングURLに付与するクエリ（不要ならnil）。
	Establish(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error)
	// End はログアウト時に認証情報を破棄する。
	End(w http.ResponseWriter, r *http.Request) error
	// Strategy は戦略名を返す。
	Strategy() string
}

// IsSecureRequest はリクエストがHTTPSで到達したかを判定する。
// trustProxyがtrueの場合はリバースプロキシ1段を信頼し、
// X-Forwarded-Protoの最後の値がhttpsであればHTTPSとみなす。
func IsSecureRequest(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	if !trustProxy {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		return false
	}
	parts := strings.Split(proto, ",")
	return strings.EqualFold(strings.TrimSpace(parts[len(parts)-1]), "https")
}

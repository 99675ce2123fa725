// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

// Authenticator はリクエストの認証に必要なインターフェース。
// session.Store の部分集合として定義する。
type Authenticator interface {
	Authenticate(r *http.Request) (*model.Identity, error)
}

// NewSessionMiddleware はリクエストの認証情報を検証するミドルウェアを返す。
// 認証済みIdentityをリクエストコンテキストに注入する。
// 認証情報がない、またはセッションが存在しない場合は401、
// トークンが不正または期限切れの場合は403を返す。いずれもハンドラーは呼び出さない。
func NewSessionMiddleware(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 認証情報の検証
			identity, err := auth.Authenticate(r)
			switch {
			case err == nil:
			case errors.Is(err, session.ErrNoCredential), errors.Is(err, session.ErrSessionNotFound):
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			case errors.Is(err, session.ErrInvalidCredential):
				WriteErrorResponse(w, http.StatusForbidden, model.NewInvalidCredentialError())
				return
			default:
				slog.Error("failed to authenticate request",
					slog.String("error", err.Error()),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				WriteInternalServerError(w)
				return
			}

			// 2. ログ用にユーザーIDを記録
			setLogUserID(r.Context(), identity.ProviderUserID)

			// 3. Identityをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return "", err
	}
	if identity.ProviderUserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.ProviderUserID, nil
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

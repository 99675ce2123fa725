// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/ghdash/internal/auth"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/session"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分

	// errorSessionFailed は認証情報の発行に失敗した場合のerrorクエリ。
	errorSessionFailed = "session_failed"
)

// AuthFlow は認証ハンドラーが必要とするOAuthフローのインターフェース。
type AuthFlow interface {
	LoginURL(state string) (string, error)
	HandleCallback(ctx context.Context, p auth.CallbackParams) (*model.Identity, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL string // ログイン後・ログアウト後のリダイレクト先のベースURL
	TrustProxy  bool   // X-Forwarded-ProtoによるHTTPS判定を行うか
}

// AuthHandler はOAuth認証とセッション関連のHTTPハンドラー。
type AuthHandler struct {
	flow   AuthFlow
	store  session.Store
	config AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow AuthFlow, store session.Store, config AuthHandlerConfig) *AuthHandler {
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")
	return &AuthHandler{
		flow:   flow,
		store:  store,
		config: config,
	}
}

// Login はGitHub OAuthフローを開始する。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.flow.LoginURL(state)
	if err != nil {
		slog.Error("failed to start oauth flow", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, h.stateCookie(r, state, oauthStateMaxAge))

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// 1. stateクッキーを取得して削除
	var expected string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		expected = c.Value
	}
	http.SetCookie(w, h.stateCookie(r, "", -1))

	// 2. 認証処理
	identity, err := h.flow.HandleCallback(r.Context(), auth.CallbackParams{
		Code:          q.Get("code"),
		ProviderError: q.Get("error"),
		State:         q.Get("state"),
		ExpectedState: expected,
	})
	if err != nil {
		reason := string(auth.ReasonExchangeFailed)
		var fe *auth.FlowError
		if errors.As(err, &fe) {
			reason = string(fe.Reason)
		} else {
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
		}
		h.redirectLoginError(w, r, reason)
		return
	}

	// 3. 認証情報の発行
	extra, err := h.store.Establish(w, r, identity)
	if err != nil {
		slog.Error("failed to establish session",
			slog.String("error", err.Error()),
			slog.String("user_id", identity.ProviderUserID),
		)
		h.redirectLoginError(w, r, errorSessionFailed)
		return
	}

	// 4. フロントエンドにリダイレクト
	landing := h.config.FrontendURL + "/dashboard"
	if len(extra) > 0 {
		landing += "?" + extra.Encode()
	}
	http.Redirect(w, r, landing, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// bearer戦略ではサーバー側の状態がないため、トークンの破棄はクライアントに委ねる。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.End(w, r); err != nil {
		// 破棄に失敗してもリダイレクトは行う
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, h.config.FrontendURL+"/", http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報をアクセストークンを除いて返す。
// GET /api/user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, identity.Public())
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.config.FrontendURL + "/login?" + url.Values{"error": {reason}}.Encode()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) stateCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   session.IsSecureRequest(r, h.config.TrustProxy),
		SameSite: http.SameSiteLaxMode,
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package handler

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/ghdash/internal/auth"
	"github.com/hitoshi/ghdash/internal/model"
)

func newTestAuthHandler(flow AuthFlow, store *mockStore) *AuthHandler {
	return NewAuthHandler(flow, store, AuthHandlerConfig{
		FrontendURL: "http://localhost:3000/",
		TrustProxy:  true,
	})
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Login ---

func TestLogin_SetsStateCookieAndRedirects(t *testing.T) {
	var gotState string
	flow := &mockAuthFlow{
		loginURLFn: func(state string) (string, error) {
			gotState = state
			return "https://github.com/login/oauth/authorize?state=" + state, nil
		},
	}
	h := newTestAuthHandler(flow, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	w := httptest.NewRecorder()
	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if len(gotState) != 32 {
		t.Errorf("state length = %d, want 32 hex chars", len(gotState))
	}
	if loc := resp.Header.Get("Location"); loc != "https://github.com/login/oauth/authorize?state="+gotState {
		t.Errorf("Location = %q", loc)
	}

	c := findCookie(resp, oauthStateCookie)
	if c == nil {
		t.Fatal("oauth_state cookie not set")
	}
	if c.Value != gotState {
		t.Errorf("cookie value = %q, want %q", c.Value, gotState)
	}
	if !c.HttpOnly {
		t.Error("oauth_state cookie should be HttpOnly")
	}
	if c.MaxAge != 600 {
		t.Errorf("MaxAge = %d, want 600", c.MaxAge)
	}
	if c.Secure {
		t.Error("cookie should not be Secure over plain HTTP")
	}
}

func TestLogin_SecureBehindProxy(t *testing.T) {
	h := newTestAuthHandler(&mockAuthFlow{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	h.Login(w, req)

	c := findCookie(w.Result(), oauthStateCookie)
	if c == nil || !c.Secure {
		t.Errorf("oauth_state cookie should be Secure behind an HTTPS proxy: %+v", c)
	}
}

func TestLogin_StateIsRandomPerRequest(t *testing.T) {
	var states []string
	flow := &mockAuthFlow{
		loginURLFn: func(state string) (string, error) {
			states = append(states, state)
			return "https://github.com/login/oauth/authorize", nil
		},
	}
	h := newTestAuthHandler(flow, &mockStore{})

	for i := 0; i < 2; i++ {
		h.Login(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	}
	if states[0] == states[1] {
		t.Error("state should differ between logins")
	}
}

func TestLogin_FlowError_Returns500WithoutStateCookie(t *testing.T) {
	flow := &mockAuthFlow{
		loginURLFn: func(state string) (string, error) {
			return "", auth.ErrInvalidTransition
		},
	}
	h := newTestAuthHandler(flow, &mockStore{})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		t.Errorf("Location = %q, want empty", loc)
	}
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			t.Error("oauth_state cookie should not be set when the flow cannot start")
		}
	}
}

// --- Callback ---

func TestCallback_Success_RedirectsToDashboard(t *testing.T) {
	var gotParams auth.CallbackParams
	flow := &mockAuthFlow{
		handleCallbackFn: func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
			gotParams = p
			return testIdentity(), nil
		},
	}
	var established *model.Identity
	store := &mockStore{
		establishFn: func(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
			established = identity
			return nil, nil
		},
	}
	h := newTestAuthHandler(flow, store)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=st1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st1"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:3000/dashboard" {
		t.Errorf("Location = %q, want %q", loc, "http://localhost:3000/dashboard")
	}
	want := auth.CallbackParams{Code: "abc", State: "st1", ExpectedState: "st1"}
	if gotParams != want {
		t.Errorf("params = %+v, want %+v", gotParams, want)
	}
	if established == nil || established.ProviderUserID != "583231" {
		t.Errorf("established identity = %+v", established)
	}

	// stateクッキーは削除される
	c := findCookie(resp, oauthStateCookie)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("oauth_state cookie should be cleared: %+v", c)
	}
}

func TestCallback_Success_AppendsCredentialQuery(t *testing.T) {
	flow := &mockAuthFlow{
		handleCallbackFn: func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
			return testIdentity(), nil
		},
	}
	store := &mockStore{
		establishFn: func(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
			return url.Values{"token": {"jwt.value.sig"}}, nil
		},
	}
	h := newTestAuthHandler(flow, store)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=s", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if loc := w.Result().Header.Get("Location"); loc != "http://localhost:3000/dashboard?token=jwt.value.sig" {
		t.Errorf("Location = %q", loc)
	}
}

func TestCallback_FlowErrors_RedirectWithReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", &auth.FlowError{Reason: auth.ReasonAccessDenied}, "access_denied"},
		{"invalid state", &auth.FlowError{Reason: auth.ReasonInvalidState}, "invalid_state"},
		{"missing code", &auth.FlowError{Reason: auth.ReasonMissingCode}, "missing_code"},
		{"exchange failed", &auth.FlowError{Reason: auth.ReasonExchangeFailed, Err: errors.New("bad code")}, "exchange_failed"},
		{"unexpected error", errors.New("boom"), "exchange_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			establishCalled := false
			flow := &mockAuthFlow{
				handleCallbackFn: func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
					return nil, tt.err
				},
			}
			store := &mockStore{
				establishFn: func(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
					establishCalled = true
					return nil, nil
				},
			}
			h := newTestAuthHandler(flow, store)

			w := httptest.NewRecorder()
			h.Callback(w, httptest.NewRequest(http.MethodGet, "/auth/callback?error=x", nil))

			resp := w.Result()
			if resp.StatusCode != http.StatusTemporaryRedirect {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
			}
			if loc := resp.Header.Get("Location"); loc != "http://localhost:3000/login?error="+tt.want {
				t.Errorf("Location = %q", loc)
			}
			if establishCalled {
				t.Error("no credential should be issued on failure")
			}
		})
	}
}

func TestCallback_PassesProviderErrorAndMissingCookie(t *testing.T) {
	var gotParams auth.CallbackParams
	flow := &mockAuthFlow{
		handleCallbackFn: func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
			gotParams = p
			return nil, &auth.FlowError{Reason: auth.ReasonInvalidState}
		},
	}
	h := newTestAuthHandler(flow, &mockStore{})

	w := httptest.NewRecorder()
	h.Callback(w, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&state=abc", nil))

	want := auth.CallbackParams{ProviderError: "access_denied", State: "abc"}
	if gotParams != want {
		t.Errorf("params = %+v, want %+v", gotParams, want)
	}
}

func TestCallback_EstablishFailure(t *testing.T) {
	flow := &mockAuthFlow{
		handleCallbackFn: func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
			return testIdentity(), nil
		},
	}
	store := &mockStore{
		establishFn: func(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
			return nil, errors.New("db down")
		},
	}
	h := newTestAuthHandler(flow, store)

	w := httptest.NewRecorder()
	h.Callback(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=s", nil))

	if loc := w.Result().Header.Get("Location"); loc != "http://localhost:3000/login?error=session_failed" {
		t.Errorf("Location = %q", loc)
	}
}

// --- Logout ---

func TestLogout_EndsSessionAndRedirects(t *testing.T) {
	endCalled := false
	store := &mockStore{
		endFn: func(w http.ResponseWriter, r *http.Request) error {
			endCalled = true
			return nil
		},
	}
	h := newTestAuthHandler(&mockAuthFlow{}, store)

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if !endCalled {
		t.Error("store.End should be called")
	}
	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:3000/" {
		t.Errorf("Location = %q, want %q", loc, "http://localhost:3000/")
	}
}

func TestLogout_RedirectsEvenWhenEndFails(t *testing.T) {
	store := &mockStore{
		endFn: func(w http.ResponseWriter, r *http.Request) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(&mockAuthFlow{}, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.TLS = &tls.ConnectionState{}
	h.Logout(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

// --- Me ---

func TestMe_ReturnsPublicIdentity(t *testing.T) {
	h := newTestAuthHandler(&mockAuthFlow{}, &mockStore{})

	w := httptest.NewRecorder()
	h.Me(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/user", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), "gho_secret_token") {
		t.Fatal("access token must not be returned")
	}

	var body model.PublicIdentity
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	want := testIdentity().Public()
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}
}

func TestMe_NoIdentity_Returns401(t *testing.T) {
	h := newTestAuthHandler(&mockAuthFlow{}, &mockStore{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

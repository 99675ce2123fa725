package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/session"
)

// buildChain はルーター相当のミドルウェアチェーンを組み立てる。
// Recovery -> RequestID -> Logging -> StatusMetrics -> SecurityHeaders -> CORS -> Session -> RateLimit -> Handler
func buildChain(logger *slog.Logger, m *statusCountingMetrics, auth Authenticator, rl *RateLimiter, h http.Handler) http.Handler {
	protected := NewSessionMiddleware(auth)(rl.GeneralMiddleware()(h))
	return NewRecoveryMiddleware()(
		NewRequestIDMiddleware()(
			NewLoggingMiddleware(logger)(
				NewStatusMetricsMiddleware(m)(
					NewSecurityHeadersMiddleware()(
						NewCORSMiddleware("http://localhost:3000")(protected),
					),
				),
			),
		),
	)
}

func TestMiddlewareChain_AuthenticatedRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := &statusCountingMetrics{}
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	auth := &mockAuthenticator{
		authenticateFn: func(r *http.Request) (*model.Identity, error) {
			if c, err := r.Cookie(session.CookieName); err == nil && c.Value == "valid-session" {
				return identityFor("user-chain"), nil
			}
			return nil, session.ErrNoCredential
		},
	}

	var capturedUserID string
	handler := buildChain(logger, m, auth, rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/repos", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "valid-session"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-chain" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-chain")
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("X-Request-ID should be set on response")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want %q", got, "no-store")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORS headers should be set")
	}
	if len(m.statuses) != 1 || m.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", m.statuses)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	if entry["user_id"] != "user-chain" {
		t.Errorf("logged user_id = %v, want %q", entry["user_id"], "user-chain")
	}
}

func TestMiddlewareChain_UnauthenticatedRequest(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	m := &statusCountingMetrics{}
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	auth := &mockAuthenticator{
		authenticateFn: func(r *http.Request) (*model.Identity, error) {
			return nil, session.ErrNoCredential
		},
	}

	handlerCalled := false
	handler := buildChain(logger, m, auth, rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/repos", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if handlerCalled {
		t.Error("handler should not be called")
	}
	// エラーレスポンスにもCORSヘッダーが付与される
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("CORS headers should be set on error responses")
	}
	if len(m.statuses) != 1 || m.statuses[0] != http.StatusUnauthorized {
		t.Errorf("recorded statuses = %v, want [401]", m.statuses)
	}
}

func TestMiddlewareChain_PreflightSkipsAuthentication(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	authCalled := false
	auth := &mockAuthenticator{
		authenticateFn: func(r *http.Request) (*model.Identity, error) {
			authCalled = true
			return nil, session.ErrNoCredential
		},
	}

	handler := buildChain(logger, &statusCountingMetrics{}, auth, rl, okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/repos", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if authCalled {
		t.Error("preflight should not be authenticated")
	}
}

func TestMiddlewareChain_RateLimitAfterSession(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		SearchRate:      1,
		SearchBurst:     10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	auth := &mockAuthenticator{
		authenticateFn: func(r *http.Request) (*model.Identity, error) {
			return identityFor("user-rate-chain"), nil
		},
	}
	handler := buildChain(logger, &statusCountingMetrics{}, auth, rl, okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/repos", nil))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/repos", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
}

func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/repos", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"Cache-Control":          "no-store",
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for h, v := range want {
		if got := w.Header().Get(h); got != v {
			t.Errorf("%s = %q, want %q", h, got, v)
		}
	}
}

func TestSecurityHeadersMiddleware_CredentialRedirectIsNotCached(t *testing.T) {
	// Bearer方式のコールバックはtokenクエリに認証情報を載せてリダイレクトする
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://localhost:3000/dashboard?token=signed.credential", http.StatusTemporaryRedirect)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=s", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want %q", got, "no-store")
	}
}

package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/repository"
)

// CookieName はセッションIDを格納するCookie名。
const CookieName = "session_id"

// CookieConfig はCookieStoreの設定。
type CookieConfig struct {
	TTL        time.Duration
	Domain     string
	TrustProxy bool
	Clock      func() time.Time
}

// CookieStore はサーバー側セッションレコードを参照するステートフル戦略のStore。
type CookieStore struct {
	repo   repository.SessionRepository
	config CookieConfig
	now    func() time.Time
}

// NewCookieStore はCookieStoreを生成する。
func NewCookieStore(repo repository.SessionRepository, config CookieConfig) *CookieStore {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &CookieStore{repo: repo, config: config, now: now}
}

// Strategy は戦略名を返す。
func (s *CookieStore) Strategy() string { return StrategyCookie }

// Authenticate はsession_id Cookieが指すセッションレコードを検証する。
func (s *CookieStore) Authenticate(r *http.Request) (*model.Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoCredential
	}

	sess, err := s.repo.FindByID(r.Context(), c.Value)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil || sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}

	identity := sess.Identity
	return &identity, nil
}

// Establish はセッションレコードを作成し、セッションCookieを設定する。
func (s *CookieStore) Establish(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	now := s.now()
	sess := &model.Session{
		ID:        id,
		Identity:  *identity,
		ExpiresAt: now.Add(s.config.TTL),
		CreatedAt: now,
	}
	if err := s.repo.Create(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	http.SetCookie(w, s.cookie(r, id, int(s.config.TTL/time.Second)))
	return nil, nil
}

// End はセッションレコードを削除し、Cookieをクリアする。
// 削除に失敗してもCookieはクリアする。
func (s *CookieStore) End(w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, cerr := r.Cookie(CookieName); cerr == nil && c.Value != "" {
		if derr := s.repo.DeleteByID(r.Context(), c.Value); derr != nil {
			err = fmt.Errorf("セッションの削除に失敗しました: %w", derr)
		}
	}
	http.SetCookie(w, s.cookie(r, "", -1))
	return err
}

// cookie はセッションCookieを組み立てる。
// HTTPS経由ならSecure; SameSite=None、平文HTTPならSameSite=Laxとする。
func (s *CookieStore) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if IsSecureRequest(r, s.config.TrustProxy) {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// newSessionID は32バイトの乱数を16進文字列にしたセッションIDを生成する。
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var (
	_ Store = (*CookieStore)(nil)
	_ Store = (*BearerStore)(nil)
)

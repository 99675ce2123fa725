package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/ghdash/internal/model"
)

// TokenCodec は署名付きトークンの発行と検証のインターフェース。
// credential.Codec が実装する。
type TokenCodec interface {
	Issue(identity *model.Identity) (string, time.Time, error)
	Verify(token string) (*model.Identity, error)
}

// BearerStore はステートレスなbearerトークン戦略のStore。
type BearerStore struct {
	codec TokenCodec
}

// NewBearerStore はBearerStoreを生成する。
func NewBearerStore(codec TokenCodec) *BearerStore {
	return &BearerStore{codec: codec}
}

// Strategy は戦略名を返す。
func (s *BearerStore) Strategy() string { return StrategyBearer }

// Authenticate はAuthorization: Bearer ヘッダーのトークンを検証する。
// Bearer以外のスキームは認証情報なしとして扱う。
func (s *BearerStore) Authenticate(r *http.Request) (*model.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredential
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, ErrNoCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	identity, err := s.codec.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return identity, nil
}

// Establish はトークンを発行し、ランディングURLのtokenクエリとして返す。
func (s *BearerStore) Establish(_ http.ResponseWriter, _ *http.Request, identity *model.Identity) (url.Values, error) {
	token, _, err := s.codec.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}
	return url.Values{"token": {token}}, nil
}

// End は何もしない。発行済みトークンは失効まで有効なままとなり、
// クライアントがトークンを破棄することでログアウトとする。
func (s *BearerStore) End(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

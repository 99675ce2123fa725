// Package credential はステートレス戦略で使用する署名付きセッション資格情報を発行・検証する。
// HS256のJWTにIdentityのコピーと絶対有効期限を埋め込む。
package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/security"
)

const (
	// DefaultTTL は資格情報のデフォルト有効期間。
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultIssuer はissクレームのデフォルト値。
	DefaultIssuer = "ghdash"
)

var (
	// ErrInvalidCredential は署名不一致、構造不正、必須クレーム欠落を表す。
	ErrInvalidCredential = errors.New("credential: invalid")
	// ErrExpiredCredential は有効期限切れを表す。errors.IsでErrInvalidCredentialにも一致する。
	ErrExpiredCredential = fmt.Errorf("%w: expired", ErrInvalidCredential)

	errMissingSigningSecret = errors.New("credential: signing secret required")
	errMissingSubject       = errors.New("credential: provider user id required")
	errMissingAccessToken   = errors.New("credential: access token required")
)

// Claims はJWTのペイロード。
type Claims struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	AccessToken string `json:"access_token"`
	jwt.RegisteredClaims
}

// Config はCodecの設定。
type Config struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	// Encryptor が有効な場合、access_tokenクレームを暗号化して埋め込む。
	Encryptor *security.Encryptor
	Clock     func() time.Time
}

// Codec は資格情報の発行と検証を行う。
// 状態を持たず、並行して安全に利用できる。
type Codec struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	encryptor *security.Encryptor
	clock     func() time.Time
}

// NewCodec はCodecを生成する。
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Codec{
		secret:    append([]byte(nil), cfg.SigningSecret...),
		issuer:    issuer,
		ttl:       ttl,
		encryptor: cfg.Encryptor,
		clock:     clock,
	}, nil
}

// TTL は発行する資格情報の有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue はIdentityを埋め込んだ署名付き資格情報と、その有効期限を返す。
// JWTの時刻は秒精度のため、発行時刻を秒に切り捨ててから有効期限を算出する。
// そのため有効期限は「呼び出し時刻+TTL」より最大1秒早くなる。
// 返り値のexpiresAtがexpクレームと一致する正式な有効期限であり、VerifyはexpiresAt以降を無効とする。
func (c *Codec) Issue(identity *model.Identity) (string, time.Time, error) {
	if identity == nil || identity.ProviderUserID == "" {
		return "", time.Time{}, errMissingSubject
	}
	if identity.AccessToken == "" {
		return "", time.Time{}, errMissingAccessToken
	}

	accessToken, err := c.encryptor.Encrypt(identity.AccessToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to seal access token: %w", err)
	}

	now := c.clock().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)

	claims := &Claims{
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		AvatarURL:   identity.AvatarURL,
		AccessToken: accessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ProviderUserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign credential: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify は資格情報を検証し、埋め込まれたIdentityを返す。
// 署名比較はjwtライブラリのHMAC検証（定数時間比較）に委ねる。
// now >= exp の場合はErrExpiredCredentialを返す。
func (c *Codec) Verify(token string) (*model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.AccessToken == "" {
		return nil, ErrInvalidCredential
	}

	accessToken, err := c.encryptor.Decrypt(claims.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	return &model.Identity{
		ProviderUserID: claims.Subject,
		Username:       claims.Username,
		DisplayName:    claims.DisplayName,
		Email:          claims.Email,
		AvatarURL:      claims.AvatarURL,
		AccessToken:    accessToken,
	}, nil
}

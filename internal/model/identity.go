// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はOAuthコールバックで生成される認証済みユーザーを表す。
// AccessTokenはアップストリーム呼び出し専用の秘匿情報であり、JSONには決して出力しない。
type Identity struct {
	ProviderUserID string `json:"provider_user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	AccessToken    string `json:"-"`
}

// PublicIdentity はブラウザへ返却するIdentityのビュー。
// アクセストークンを含まない。
type PublicIdentity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Public はアクセストークンを除いたビューを返す。
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:          i.ProviderUserID,
		Username:    i.Username,
		DisplayName: i.DisplayName,
		Email:       i.Email,
		AvatarURL:   i.AvatarURL,
	}
}

// Session はサーバー側で保持するログインセッションを表す。
// ステートフル戦略でのみ使用する。
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻の時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

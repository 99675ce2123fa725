package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

// DefaultScopes はGitHubに要求するデフォルトのスコープ。
var DefaultScopes = []string{"user", "repo"}

// GitHubConfig はGitHub OAuthプロバイダーの設定。
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// テストやGitHub Enterprise向けにオーバーライド可能なURL
	AuthURL  string
	TokenURL string

	// トークンエンドポイントの呼び出しに使用するクライアント。タイムアウトは呼び出し元で設定する。
	HTTPClient *http.Client
}

// GitHubProvider はGitHub OAuthの認可URL生成とコード交換を提供する。
type GitHubProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewGitHubProvider はGitHubProviderを生成する。
func NewGitHubProvider(cfg GitHubConfig) (*GitHubProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	endpoint := oauthgithub.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// GitHubはclient_secretをフォームパラメータで受け付ける
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), scopes...),
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL はGitHubの認可URLを生成する。
func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange は認可コードをアクセストークンに交換する。
// 使用済みのコードはGitHub側で拒否される。
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("empty access token in response")
	}
	return token.AccessToken, nil
}

var _ Provider = (*GitHubProvider)(nil)

// Package github はユーザーのアクセストークンを付与してGitHub REST APIを呼び出すクライアントを提供する。
// 応答は明示的な構造体にデコードしてからドメインモデルへ変換する。
// リトライは行わず、タイムアウトは注入されたhttp.Clientの設定に従う。
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/ghdash/internal/metrics"
	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/security"
)

const (
	// DefaultBaseURL はGitHub REST APIのベースURL。
	DefaultBaseURL = "https://api.github.com"
	// DefaultMaxBodyBytes はレスポンスボディの既定の上限サイズ。
	DefaultMaxBodyBytes int64 = 5 << 20

	apiVersion = "2022-11-28"
	userAgent  = "ghdash/1.0"
)

// errBodyTooLarge はレスポンスボディが上限を超えたことを表す。
var errBodyTooLarge = errors.New("response body exceeds limit")

// ListOptions はページング指定。0の項目はクエリに含めない。
type ListOptions struct {
	Page    int
	PerPage int
}

// IssueListOptions はIssue・プルリクエスト一覧の取得条件。
type IssueListOptions struct {
	State   string // open, closed, all
	Page    int
	PerPage int
}

// Config はClientの生成パラメータ。
type Config struct {
	BaseURL      string
	HTTPClient   *http.Client
	MaxBodyBytes int64
	Sanitizer    security.TextSanitizer
	Metrics      metrics.MetricsCollector
	Logger       *slog.Logger
}

// Client はGitHub APIのクライアント。
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	maxBodyBytes int64
	sanitizer    security.TextSanitizer
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// 未指定の項目には既定値を使用する。
func NewClient(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}
	if base.Scheme != "https" && base.Scheme != "http" {
		return nil, fmt.Errorf("ベースURLのスキームが不正です: %q", base.Scheme)
	}

	c := &Client{
		httpClient:   cfg.HTTPClient,
		baseURL:      base,
		maxBodyBytes: cfg.MaxBodyBytes,
		sanitizer:    cfg.Sanitizer,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = DefaultMaxBodyBytes
	}
	if c.sanitizer == nil {
		c.sanitizer = security.NewTextSanitizer()
	}
	if c.metrics == nil {
		c.metrics = metrics.NopCollector{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// ListOwnedRepositories は呼び出し元がアクセスできるリポジトリ一覧を取得する。
func (c *Client) ListOwnedRepositories(ctx context.Context, id *model.Identity, opts ListOptions) ([]model.Resource, error) {
	var payload []repoPayload
	q := pagingQuery(opts.Page, opts.PerPage)
	if err := c.get(ctx, "list_repos", id.AccessToken, "/user/repos", q, &payload); err != nil {
		return nil, err
	}
	return c.toResources(payload), nil
}

// GetRepository はIDでリポジトリを取得する。
func (c *Client) GetRepository(ctx context.Context, id *model.Identity, repoID int64) (*model.Resource, error) {
	var payload repoPayload
	path := "/repositories/" + strconv.FormatInt(repoID, 10)
	if err := c.get(ctx, "get_repo", id.AccessToken, path, nil, &payload); err != nil {
		return nil, err
	}
	r := c.toResource(payload)
	return &r, nil
}

// ListIssues はリポジトリのIssue一覧を取得する。
// GitHubは/issuesでプルリクエストも返すため、それらは除外する。
func (c *Client) ListIssues(ctx context.Context, id *model.Identity, repoID int64, opts IssueListOptions) ([]model.Issue, error) {
	var payload []issuePayload
	path := "/repositories/" + strconv.FormatInt(repoID, 10) + "/issues"
	if err := c.get(ctx, "list_issues", id.AccessToken, path, issueQuery(opts), &payload); err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(payload))
	for _, p := range payload {
		if p.PullRequest != nil {
			continue
		}
		issues = append(issues, c.toIssue(p))
	}
	return issues, nil
}

// ListPullRequests はリポジトリのプルリクエスト一覧を取得する。
func (c *Client) ListPullRequests(ctx context.Context, id *model.Identity, repoID int64, opts IssueListOptions) ([]model.PullRequest, error) {
	var payload []pullPayload
	path := "/repositories/" + strconv.FormatInt(repoID, 10) + "/pulls"
	if err := c.get(ctx, "list_pulls", id.AccessToken, path, issueQuery(opts), &payload); err != nil {
		return nil, err
	}

	pulls := make([]model.PullRequest, 0, len(payload))
	for _, p := range payload {
		pulls = append(pulls, c.toPullRequest(p))
	}
	return pulls, nil
}

// SearchRepositories はリポジトリをグローバル検索する。結果はアップストリームの順序のまま返す。
func (c *Client) SearchRepositories(ctx context.Context, id *model.Identity, query string, perPage int) ([]model.Resource, error) {
	q := pagingQuery(0, perPage)
	q.Set("q", query)

	var payload searchPayload
	if err := c.get(ctx, "search_repos", id.AccessToken, "/search/repositories", q, &payload); err != nil {
		return nil, err
	}
	return c.toResources(payload.Items), nil
}

// FetchProfile はアクセストークンの持ち主のプロフィールを取得し、Identityとして返す。
func (c *Client) FetchProfile(ctx context.Context, token string) (*model.Identity, error) {
	var payload profilePayload
	if err := c.get(ctx, "get_user", token, "/user", nil, &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 || payload.Login == "" {
		return nil, &Error{
			Kind:     ErrUpstreamUnavailable,
			Status:   http.StatusBadGateway,
			Endpoint: "get_user",
			Err:      errors.New("profile is missing id or login"),
		}
	}
	return toIdentity(payload, token), nil
}

// FetchPrimaryEmail は検証済みのプライマリメールアドレスを返す。
// 該当がなければ空文字列を返す。
func (c *Client) FetchPrimaryEmail(ctx context.Context, token string) (string, error) {
	var payload []emailPayload
	if err := c.get(ctx, "get_emails", token, "/user/emails", nil, &payload); err != nil {
		return "", err
	}
	for _, e := range payload {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

// get はGETリクエストを送信し、成功時はJSONをoutにデコードする。
func (c *Client) get(ctx context.Context, endpoint, token, path string, query url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamRequest(endpoint, outcome(err), time.Since(start))
	}()

	if token == "" {
		return &Error{Kind: ErrUpstreamRejected, Status: http.StatusUnauthorized, Endpoint: endpoint}
	}

	reqURL := *c.baseURL
	reqURL.Path = c.baseURL.Path + path
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("GitHub APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return transportError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Warn("GitHub APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return statusError(endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return transportError(endpoint, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		c.logger.Warn("GitHub APIのレスポンスが上限サイズを超えました",
			slog.String("endpoint", endpoint),
			slog.Int64("limit_bytes", c.maxBodyBytes),
		)
		return &Error{Kind: ErrUpstreamUnavailable, Status: http.StatusBadGateway, Endpoint: endpoint, Err: errBodyTooLarge}
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("GitHub APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: ErrUpstreamUnavailable, Status: http.StatusBadGateway, Endpoint: endpoint, Err: err}
	}
	return nil
}

func pagingQuery(page, perPage int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}

func issueQuery(opts IssueListOptions) url.Values {
	q := pagingQuery(opts.Page, opts.PerPage)
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	return q
}

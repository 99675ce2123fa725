package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/ghdash/internal/auth"
	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/model"
)

// --- モック定義 ---

type mockAuthFlow struct {
	loginURLFn       func(state string) (string, error)
	handleCallbackFn func(ctx context.Context, p auth.CallbackParams) (*model.Identity, error)
}

func (m *mockAuthFlow) LoginURL(state string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return "https://github.com/login/oauth/authorize?state=" + state, nil
}

func (m *mockAuthFlow) HandleCallback(ctx context.Context, p auth.CallbackParams) (*model.Identity, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, p)
	}
	return nil, &auth.FlowError{Reason: auth.ReasonExchangeFailed}
}

type mockStore struct {
	strategy       string
	authenticateFn func(r *http.Request) (*model.Identity, error)
	establishFn    func(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error)
	endFn          func(w http.ResponseWriter, r *http.Request) error
}

func (m *mockStore) Authenticate(r *http.Request) (*model.Identity, error) {
	return m.authenticateFn(r)
}

func (m *mockStore) Establish(w http.ResponseWriter, r *http.Request, identity *model.Identity) (url.Values, error) {
	if m.establishFn != nil {
		return m.establishFn(w, r, identity)
	}
	return nil, nil
}

func (m *mockStore) End(w http.ResponseWriter, r *http.Request) error {
	if m.endFn != nil {
		return m.endFn(w, r)
	}
	return nil
}

func (m *mockStore) Strategy() string { return m.strategy }

type mockResourceReader struct {
	listOwnedFn func(ctx context.Context, id *model.Identity, opts github.ListOptions) ([]model.Resource, error)
	getFn       func(ctx context.Context, id *model.Identity, repoID int64) (*model.Resource, error)
	issuesFn    func(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.Issue, error)
	pullsFn     func(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.PullRequest, error)
}

func (m *mockResourceReader) ListOwnedRepositories(ctx context.Context, id *model.Identity, opts github.ListOptions) ([]model.Resource, error) {
	return m.listOwnedFn(ctx, id, opts)
}

func (m *mockResourceReader) GetRepository(ctx context.Context, id *model.Identity, repoID int64) (*model.Resource, error) {
	return m.getFn(ctx, id, repoID)
}

func (m *mockResourceReader) ListIssues(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.Issue, error) {
	return m.issuesFn(ctx, id, repoID, opts)
}

func (m *mockResourceReader) ListPullRequests(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.PullRequest, error) {
	return m.pullsFn(ctx, id, repoID, opts)
}

type mockSearcher struct {
	searchFn func(ctx context.Context, id *model.Identity, q string) (*model.SearchResult, error)
}

func (m *mockSearcher) Search(ctx context.Context, id *model.Identity, q string) (*model.SearchResult, error) {
	return m.searchFn(ctx, id, q)
}

type mockSuggester struct {
	suggestFn func(ctx context.Context, id *model.Identity, q string) ([]model.SuggestionEntry, error)
}

func (m *mockSuggester) Suggest(ctx context.Context, id *model.Identity, q string) ([]model.SuggestionEntry, error) {
	return m.suggestFn(ctx, id, q)
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- ヘルパー ---

func testIdentity() *model.Identity {
	return &model.Identity{
		ProviderUserID: "583231",
		Username:       "octocat",
		DisplayName:    "The Octocat",
		Email:          "octocat@example.com",
		AvatarURL:      "https://avatars.example.com/u/583231",
		AccessToken:    "gho_secret_token",
	}
}

// withIdentity はSessionミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func withIdentity(r *http.Request) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), testIdentity()))
}

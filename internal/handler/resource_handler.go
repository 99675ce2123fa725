package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/model"
)

const maxPerPage = 100

// ResourceReader はリソースハンドラーが必要とするアップストリームのインターフェース。
// github.Client が実装する。
type ResourceReader interface {
	ListOwnedRepositories(ctx context.Context, id *model.Identity, opts github.ListOptions) ([]model.Resource, error)
	GetRepository(ctx context.Context, id *model.Identity, repoID int64) (*model.Resource, error)
	ListIssues(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.Issue, error)
	ListPullRequests(ctx context.Context, id *model.Identity, repoID int64, opts github.IssueListOptions) ([]model.PullRequest, error)
}

// ResourceHandler はリポジトリ・Issue・プルリクエストのHTTPハンドラー。
// 呼び出し元のアクセストークンでアップストリームへ中継する。
type ResourceHandler struct {
	reader ResourceReader
}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler(reader ResourceReader) *ResourceHandler {
	return &ResourceHandler{reader: reader}
}

// ListResources は呼び出し元が所有するリポジトリ一覧を返す。
// GET /api/resources?page=&per_page=
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resources, err := h.reader.ListOwnedRepositories(r.Context(), identity, opts)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if resources == nil {
		resources = []model.Resource{}
	}
	writeJSON(w, http.StatusOK, resources)
}

// GetResource はリポジトリの詳細を返す。
// GET /api/resources/{id}
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	repoID, err := parseResourceID(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resource, err := h.reader.GetRepository(r.Context(), identity, repoID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

// ListIssues はリポジトリのIssue一覧を返す。プルリクエストは含まない。
// GET /api/resources/{id}/issues?state=&page=&per_page=
func (h *ResourceHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	repoID, opts, err := parseIssueRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	issues, err := h.reader.ListIssues(r.Context(), identity, repoID, opts)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if issues == nil {
		issues = []model.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

// ListPullRequests はリポジトリのプルリクエスト一覧を返す。
// GET /api/resources/{id}/pulls?state=&page=&per_page=
func (h *ResourceHandler) ListPullRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	repoID, opts, err := parseIssueRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	pulls, err := h.reader.ListPullRequests(r.Context(), identity, repoID, opts)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if pulls == nil {
		pulls = []model.PullRequest{}
	}
	writeJSON(w, http.StatusOK, pulls)
}

// requireIdentity はコンテキストからIdentityを取得する。取得できなければ401を書き込む。
func requireIdentity(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return nil, false
	}
	return identity, true
}

// parseResourceID はURLパスのリポジトリIDを正の整数として解析する。
func parseResourceID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, newInvalidInput("id must be a positive integer")
	}
	return id, nil
}

// parseListOptions はpage・per_pageクエリを解析する。未指定はアップストリームのデフォルトに従う。
func parseListOptions(r *http.Request) (github.ListOptions, error) {
	q := r.URL.Query()
	var opts github.ListOptions

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return opts, newInvalidInput("page must be a positive integer")
		}
		opts.Page = page
	}

	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > maxPerPage {
			return opts, newInvalidInput("per_page must be between 1 and 100")
		}
		opts.PerPage = perPage
	}

	return opts, nil
}

// parseIssueRequest はIssue・プルリクエスト一覧のパスとクエリを解析する。
func parseIssueRequest(r *http.Request) (int64, github.IssueListOptions, error) {
	var opts github.IssueListOptions

	repoID, err := parseResourceID(r)
	if err != nil {
		return 0, opts, err
	}

	paging, err := parseListOptions(r)
	if err != nil {
		return 0, opts, err
	}
	opts.Page = paging.Page
	opts.PerPage = paging.PerPage

	switch state := r.URL.Query().Get("state"); state {
	case "", "open", "closed", "all":
		opts.State = state
	default:
		return 0, opts, newInvalidInput("state must be one of open, closed, all")
	}

	return repoID, opts, nil
}

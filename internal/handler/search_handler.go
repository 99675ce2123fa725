package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ghdash/internal/model"
)

// Searcher は検索ハンドラーが必要とするインターフェース。search.Aggregator が実装する。
type Searcher interface {
	Search(ctx context.Context, id *model.Identity, rawQuery string) (*model.SearchResult, error)
}

// SuggestionProvider はサジェストハンドラーが必要とするインターフェース。search.Suggester が実装する。
type SuggestionProvider interface {
	Suggest(ctx context.Context, id *model.Identity, rawQuery string) ([]model.SuggestionEntry, error)
}

// SearchHandler は検索とサジェストのHTTPハンドラー。
type SearchHandler struct {
	searcher  Searcher
	suggester SuggestionProvider
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(searcher Searcher, suggester SuggestionProvider) *SearchHandler {
	return &SearchHandler{
		searcher:  searcher,
		suggester: suggester,
	}
}

// Search はクエリに一致するリポジトリを返す。
// 自分のリポジトリ名に完全一致すればそれを、なければグローバル検索の結果を返す。
// GET /api/search?query=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.searcher.Search(r.Context(), identity, r.URL.Query().Get("query"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Suggest はオートコンプリート候補を返す。該当なしの場合は空配列を返す。
// GET /api/suggest?query=
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	entries, err := h.suggester.Suggest(r.Context(), identity, r.URL.Query().Get("query"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.SuggestionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

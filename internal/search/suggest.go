package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/model"
)

// Suggester はオートコンプリート候補を生成する。
type Suggester struct {
	source ResourceSource
}

// NewSuggester はSuggesterの新しいインスタンスを生成する。
func NewSuggester(source ResourceSource) *Suggester {
	return &Suggester{source: source}
}

// Suggest はクエリに対する候補を返す。自分のリポジトリの候補が先、グローバル検索の候補が後に並ぶ。
// 空のクエリには空のスライスを返し、アップストリームは呼び出さない。
// どちらかの取得に失敗した場合は呼び出し全体を失敗とする。
func (s *Suggester) Suggest(ctx context.Context, id *model.Identity, rawQuery string) ([]model.SuggestionEntry, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return []model.SuggestionEntry{}, nil
	}

	var owned, global []model.Resource
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := s.source.ListOwnedRepositories(gctx, id, github.ListOptions{PerPage: ownedPerPage})
		if err != nil {
			return fmt.Errorf("自分のリポジトリ一覧の取得に失敗しました: %w", err)
		}
		owned = rs
		return nil
	})
	g.Go(func() error {
		rs, err := s.source.SearchRepositories(gctx, id, query, suggestGlobalPerPage)
		if err != nil {
			return fmt.Errorf("グローバル検索に失敗しました: %w", err)
		}
		global = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(query)
	entries := make([]model.SuggestionEntry, 0, len(owned)+len(global))
	for _, r := range owned {
		if strings.Contains(strings.ToLower(r.Name), lower) {
			entries = append(entries, model.NewSuggestionEntry(r, model.ProvenanceOwned))
		}
	}
	for _, r := range global {
		entries = append(entries, model.NewSuggestionEntry(r, model.ProvenanceGlobal))
	}
	return entries, nil
}

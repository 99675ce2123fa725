// Package search はリポジトリ検索とオートコンプリート候補の生成を提供する。
//
// Aggregator は自分のリポジトリへの完全一致を優先し、なければグローバル検索に切り替える。
// Suggester は自分のリポジトリの部分一致とグローバル検索の上位を並行取得して連結する。
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/metrics"
	"github.com/hitoshi/ghdash/internal/model"
)

const (
	// ownedPerPage は自分のリポジトリ一覧を取得する際の件数。
	ownedPerPage = 100
	// suggestGlobalPerPage はサジェストでのグローバル検索の件数。
	suggestGlobalPerPage = 5
)

var (
	// ErrInvalidQuery は検索クエリが空の場合のエラー。
	ErrInvalidQuery = errors.New("search query is empty")
	// ErrNoResults はグローバル検索が0件だった場合のエラー。
	ErrNoResults = errors.New("no repositories matched")
)

// ResourceSource は検索に利用するアップストリーム操作のインターフェース。
type ResourceSource interface {
	ListOwnedRepositories(ctx context.Context, id *model.Identity, opts github.ListOptions) ([]model.Resource, error)
	SearchRepositories(ctx context.Context, id *model.Identity, query string, perPage int) ([]model.Resource, error)
}

// Aggregator はリポジトリ検索のサービス層。
type Aggregator struct {
	source  ResourceSource
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(source ResourceSource, m metrics.MetricsCollector, logger *slog.Logger) *Aggregator {
	if m == nil {
		m = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{source: source, metrics: m, logger: logger}
}

// Search はクエリに一致するリポジトリを返す。
// 自分のリポジトリ名と大文字小文字を無視して完全一致すればそれを返し、グローバル検索は行わない。
// 名前が大文字小文字違いで重複する場合はアップストリームの順序で先頭のものを採用する。
func (a *Aggregator) Search(ctx context.Context, id *model.Identity, rawQuery string) (*model.SearchResult, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	// 1. 自分のリポジトリから完全一致を探す
	owned, err := a.source.ListOwnedRepositories(ctx, id, github.ListOptions{PerPage: ownedPerPage})
	if err != nil {
		return nil, fmt.Errorf("自分のリポジトリ一覧の取得に失敗しました: %w", err)
	}
	for _, r := range owned {
		if strings.EqualFold(r.Name, query) {
			a.metrics.RecordSearchResult(string(model.SearchKindOwned))
			return model.NewOwnedResult(r), nil
		}
	}

	// 2. グローバル検索
	global, err := a.source.SearchRepositories(ctx, id, query, 0)
	if err != nil {
		return nil, fmt.Errorf("グローバル検索に失敗しました: %w", err)
	}
	if len(global) == 0 {
		a.metrics.RecordSearchResult("none")
		return nil, ErrNoResults
	}

	a.metrics.RecordSearchResult(string(model.SearchKindGlobal))
	a.logger.Debug("グローバル検索の結果を返します",
		slog.String("user_id", id.ProviderUserID),
		slog.Int("count", len(global)),
	)
	return model.NewGlobalResult(global), nil
}

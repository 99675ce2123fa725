// Package model はドメインモデルを定義する。
package model

import "time"

// Resource はアップストリームのリポジトリを表す。
// 読み取り専用で永続化しない。
type Resource struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	OwnerScope  string `json:"owner_scope"`
}

// Issue はリポジトリのIssueを表す。
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// PullRequest はリポジトリのプルリクエストを表す。
type PullRequest struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Draft     bool      `json:"draft"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchKind は検索結果の種別。
type SearchKind string

const (
	// SearchKindOwned は呼び出し元自身のリソースに完全一致したことを示す。
	SearchKindOwned SearchKind = "owned"
	// SearchKindGlobal はグローバル検索の結果であることを示す。
	SearchKindGlobal SearchKind = "global"
)

// SearchResult は検索結果のタグ付きユニオン。
// Kindに応じてResourceかResourcesのどちらか一方のみが設定される。
type SearchResult struct {
	Kind      SearchKind `json:"kind"`
	Resource  *Resource  `json:"resource,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

// NewOwnedResult は自分のリソースに一致した検索結果を生成する。
func NewOwnedResult(r Resource) *SearchResult {
	return &SearchResult{Kind: SearchKindOwned, Resource: &r}
}

// NewGlobalResult はグローバル検索の結果を生成する。
func NewGlobalResult(rs []Resource) *SearchResult {
	return &SearchResult{Kind: SearchKindGlobal, Resources: rs}
}

// Provenance はサジェスト候補の出所。
type Provenance string

const (
	ProvenanceOwned  Provenance = "owned"
	ProvenanceGlobal Provenance = "global"
)

// SuggestionEntry はオートコンプリート用の候補を表す。
type SuggestionEntry struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url"`
	Provenance  Provenance `json:"provenance"`
}

// NewSuggestionEntry はResourceからサジェスト候補を生成する。
func NewSuggestionEntry(r Resource, p Provenance) SuggestionEntry {
	return SuggestionEntry{
		ID:          r.ID,
		FullName:    r.FullName,
		Description: r.Description,
		URL:         r.URL,
		Provenance:  p,
	}
}

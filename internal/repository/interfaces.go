// Package repository はセッションレコードの永続化インターフェースと実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/ghdash/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
// ステートフル戦略のセッションテーブルとして使用する。
// 実装は並行したFindByID/Create/DeleteByIDに対して安全でなければならない。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しない、または期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// Pinger は接続確認が可能なバックエンドのインターフェース。
// ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

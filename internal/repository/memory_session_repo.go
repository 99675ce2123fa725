package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/ghdash/internal/model"
)

// MemorySessionRepo はプロセス内メモリを使用したセッションリポジトリ。
// 単一インスタンス構成向け。複数インスタンスの場合はPostgresSessionRepoを使用する。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	clock           func() time.Time
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// MemorySessionRepoConfig はMemorySessionRepoの設定。
type MemorySessionRepoConfig struct {
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔。0以下でクリーンアップループを起動しない
	Clock           func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
// CleanupIntervalが正の場合、バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemorySessionRepo(config MemorySessionRepoConfig) *MemorySessionRepo {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	r := &MemorySessionRepo{
		sessions:        make(map[string]*model.Session),
		clock:           clock,
		cleanupInterval: config.CleanupInterval,
		stopCh:          make(chan struct{}),
	}

	if r.cleanupInterval > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *MemorySessionRepo) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Create はセッションを作成する。同一IDが既に存在する場合はエラーを返す。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists")
	}

	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
// 呼び出し元による変更がテーブルに影響しないようコピーを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[id]
	r.mu.RUnlock()

	if !exists || session.Expired(r.clock()) {
		return nil, nil
	}

	found := *session
	return &found, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count は現在保持しているセッション数を返す。
// テストおよびメトリクス用。
func (r *MemorySessionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的に削除する。
func (r *MemorySessionRepo) cleanupLoop() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, _ := r.DeleteExpired(context.Background())
			if deleted > 0 {
				slog.Debug("expired sessions evicted", slog.Int64("count", deleted))
			}
		case <-r.stopCh:
			return
		}
	}
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)

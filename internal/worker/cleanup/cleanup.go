// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// Postgresバックエンドでは期限切れ行が自然には消えないため、サーバープロセス内で
// 一定間隔ごとに削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は削除ジョブの既定の実行間隔。
const DefaultInterval = 10 * time.Minute

// ExpiredSessionDeleter は期限切れセッションを削除できるストレージのインターフェース。
// repository.SessionRepository が満たす。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type SessionCleanupJob struct {
	repo     ExpiredSessionDeleter
	logger   *slog.Logger
	Interval time.Duration
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(repo ExpiredSessionDeleter, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		repo:     repo,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.repo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行したあと、Intervalごとにジョブを実行する。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに記録して継続する。
func (j *SessionCleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}

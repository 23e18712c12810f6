// Package orphanaudit はプロフィールが作成されないまま残ったローカル認証IDを定期的に数える。
// 会員登録は途中で失敗しても取り消さないため、残存件数を監視対象として公開する。
// 削除は行わない。
package orphanaudit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Counter はプロフィールの無い認証IDを数える。
type Counter interface {
	CountWithoutProfile(ctx context.Context, olderThan time.Duration) (int, error)
}

// Gauge は残存件数を記録する。
type Gauge interface {
	SetOrphanedLocalIdentities(n int)
}

// Job はプロフィールの無い認証IDの監査ジョブ。
type Job struct {
	counter Counter
	gauge   Gauge
	logger  *slog.Logger
	// GracePeriod より新しい認証IDは会員登録の処理中とみなし、数えない。
	GracePeriod time.Duration
}

// NewJob は新しいJobを生成する。デフォルトの猶予期間は10分。
func NewJob(counter Counter, gauge Gauge, logger *slog.Logger) *Job {
	return &Job{
		counter:     counter,
		gauge:       gauge,
		logger:      logger,
		GracePeriod: 10 * time.Minute,
	}
}

// Run は1回だけ監査を実行し、件数をゲージに記録する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	count, err := j.counter.CountWithoutProfile(ctx, j.GracePeriod)
	if err != nil {
		return fmt.Errorf("孤立した認証IDの集計に失敗: %w", err)
	}

	j.gauge.SetOrphanedLocalIdentities(count)

	level := slog.LevelInfo
	if count > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "孤立した認証IDの監査が完了しました",
		slog.Int("orphaned_count", count),
		slog.Duration("grace_period", j.GracePeriod),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとに監査を実行する。ctxがキャンセルされるまで戻らない。
// 1回の失敗では止まらず、エラーをログに残して次の周期で再試行する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.runAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("孤立した認証IDの監査ジョブが失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

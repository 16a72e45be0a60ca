// Package purge はストレージ削除待ち（storage_deletions）を処理するバックグラウンドワーカーを提供する。
// メディアの行を削除するとトリガーで削除待ちが積まれ、このワーカーがオブジェクトストレージから実体を削除する。
package purge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/catalog/internal/metrics"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/storage"
)

// DeletionQueue は削除待ちの取得・完了・再設定のインターフェース。
// repository.StorageDeletionRepositoryが満たす。
type DeletionQueue interface {
	ListDue(ctx context.Context, limit int) ([]model.StorageDeletion, error)
	Complete(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error
}

// ObjectRemover はオブジェクトの削除インターフェース。storage.ObjectStoreが満たす。
type ObjectRemover interface {
	Remove(ctx context.Context, path string) error
}

// Recorder は処理結果の記録先。
type Recorder interface {
	RecordPurge(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPurge(string) {}

// Purger は削除待ち1件を処理する。
type Purger struct {
	queue   DeletionQueue
	objects ObjectRemover
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewPurger はPurgerの新しいインスタンスを生成する。recorderがnilの場合は記録しない。
func NewPurger(queue DeletionQueue, objects ObjectRemover, recorder Recorder, logger *slog.Logger) *Purger {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Purger{
		queue:   queue,
		objects: objects,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// Purge はオブジェクトを削除し、結果に応じて削除待ちを完了または再設定する。
// オブジェクトが既に存在しない場合も完了として扱う。
// 戻り値は処理結果のラベル（metrics.PurgeRemoved など）。
func (p *Purger) Purge(ctx context.Context, d model.StorageDeletion) (string, error) {
	removeErr := p.objects.Remove(ctx, d.StoragePath)

	switch {
	case removeErr == nil || errors.Is(removeErr, storage.ErrObjectNotFound):
		result := metrics.PurgeRemoved
		if removeErr != nil {
			result = metrics.PurgeMissing
		}
		if err := p.queue.Complete(ctx, d.ID); err != nil {
			return "", fmt.Errorf("削除待ちの完了に失敗しました: %w", err)
		}
		p.metrics.RecordPurge(result)
		p.logger.Debug("ストレージのオブジェクトを削除しました",
			slog.Int64("deletion_id", d.ID),
			slog.String("path", d.StoragePath),
			slog.String("result", result),
		)
		return result, nil

	default:
		attempts := d.Attempts + 1
		next := p.now().Add(CalculateBackoff(attempts))
		if err := p.queue.Reschedule(ctx, d.ID, attempts, truncateError(removeErr.Error()), next); err != nil {
			return "", fmt.Errorf("削除待ちの再設定に失敗しました: %w", err)
		}
		p.metrics.RecordPurge(metrics.PurgeRescheduled)
		p.logger.Warn("ストレージのオブジェクト削除に失敗しました",
			slog.Int64("deletion_id", d.ID),
			slog.String("path", d.StoragePath),
			slog.Int("attempts", attempts),
			slog.Time("next_attempt_at", next),
			slog.String("error", removeErr.Error()),
		)
		return metrics.PurgeRescheduled, nil
	}
}

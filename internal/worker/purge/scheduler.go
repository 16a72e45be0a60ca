package purge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/pending"
)

// ObjectPurger は削除待ち1件の処理インターフェース。
type ObjectPurger interface {
	Purge(ctx context.Context, d model.StorageDeletion) (string, error)
}

// SchedulerConfig はスケジューラの設定。
type SchedulerConfig struct {
	BatchSize      int // 1サイクルで取得する最大件数（デフォルト: 50）
	MaxConcurrency int // 同時に削除する最大数（デフォルト: 4）
}

// Scheduler は削除待ちの定期処理と並列制御を行う。
// ティッカーごとに処理時刻に達した削除待ちを取得し、
// semaphoreパターンで最大並列数を制御しながら削除を実行する。
// サイクルの実行中はCoordinatorの処理中カウンタを1つ占有する。
type Scheduler struct {
	queue   DeletionQueue
	purger  ObjectPurger
	busy    *pending.Binding
	logger  *slog.Logger
	batch   int
	workers int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	queue DeletionQueue,
	purger ObjectPurger,
	coord *pending.Coordinator,
	logger *slog.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Scheduler{
		queue:   queue,
		purger:  purger,
		busy:    coord.Bind(),
		logger:  logger,
		batch:   cfg.BatchSize,
		workers: cfg.MaxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.busy.Close()

	s.logger.Info("削除スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("batch_size", s.batch),
		slog.Int("max_concurrency", s.workers),
	)

	// 起動直後に1回実行
	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("削除スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("削除サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は削除待ちを1回取得し、並列で削除を実行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.busy.Set(true)
	defer s.busy.Set(false)

	start := time.Now()

	// 処理時刻に達した削除待ちを取得（FOR UPDATE SKIP LOCKED）
	deletions, err := s.queue.ListDue(ctx, s.batch)
	if err != nil {
		return err
	}

	if len(deletions) == 0 {
		s.logger.Debug("削除待ちはありません")
		return nil
	}

	s.logger.Info("削除サイクルを開始します",
		slog.Int("deletion_count", len(deletions)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.workers)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)

	for _, d := range deletions {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(d model.StorageDeletion) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			result, err := s.purger.Purge(ctx, d)
			if err != nil {
				s.logger.Error("削除待ちの処理に失敗しました",
					slog.Int64("deletion_id", d.ID),
					slog.String("path", d.StoragePath),
					slog.String("error", err.Error()),
				)
				return
			}
			mu.Lock()
			counts[result]++
			mu.Unlock()
		}(d)
	}

	wg.Wait()

	s.logger.Info("削除サイクルが完了しました",
		slog.Int("deletion_count", len(deletions)),
		slog.Any("results", counts),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

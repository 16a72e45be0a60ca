// Package cleanup は削除を諦めたストレージ削除待ちの定期破棄ジョブを提供する。
// 試行回数が上限に達し、かつ保持期間（デフォルト30日）を超過した削除待ちを
// 日次バッチで破棄する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Executor は *sql.DB または *sql.Tx。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は削除を諦めたストレージ削除待ちの破棄ジョブ。日次で実行する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	MaxAttempts   int // 破棄対象とする試行回数の下限（デフォルト: 20）
	RetentionDays int // 削除待ちの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		MaxAttempts:   20,
		RetentionDays: 30,
	}
}

// Run は試行回数がMaxAttempts以上、かつcreated_atがRetentionDays日前より古い削除待ちを削除する。
// ストレージに残ったオブジェクトは手動で確認する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query, args, err := sq.Delete("storage_deletions").
		Where(sq.GtOrEq{"attempts": j.MaxAttempts}).
		Where("created_at < now() - ?::interval", fmt.Sprintf("%d days", j.RetentionDays)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("クエリの構築に失敗: %w", err)
	}

	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("削除待ちクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("削除待ちクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	level := slog.LevelInfo
	if deletedCount > 0 {
		level = slog.LevelWarn
	}
	j.logger.Log(ctx, level, "削除待ちクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/hitoshi/catalog/internal/model"
)

// claimLease はListDueで取得した行を他のワーカーから隠しておく期間。
// ワーカーが処理途中で停止しても、この期間が過ぎれば再度取得される。
const claimLease = 5 * time.Minute

// PostgresStorageDeletionRepo はPostgreSQLを使用したストレージ削除待ちリポジトリ。
type PostgresStorageDeletionRepo struct {
	db *sql.DB
}

// NewPostgresStorageDeletionRepo はPostgresStorageDeletionRepoを生成する。
func NewPostgresStorageDeletionRepo(db *sql.DB) *PostgresStorageDeletionRepo {
	return &PostgresStorageDeletionRepo{db: db}
}

// buildClaimDue は処理時刻に達した行をFOR UPDATE SKIP LOCKEDで確保し、
// 次回処理時刻をリース期間だけ先送りするクエリを組み立てる。
func buildClaimDue(limit int) squirrel.UpdateBuilder {
	return psql.Update("storage_deletions").
		Set("next_attempt_at", squirrel.Expr("now() + make_interval(secs => ?)", claimLease.Seconds())).
		Where(squirrel.Expr(
			`id IN (SELECT id FROM storage_deletions
			        WHERE next_attempt_at <= now()
			        ORDER BY next_attempt_at ASC
			        LIMIT ?
			        FOR UPDATE SKIP LOCKED)`, limit)).
		Suffix("RETURNING id, storage_path, attempts, last_error, next_attempt_at, created_at")
}

// ListDue は処理時刻に達した削除待ちを最大limit件確保して返す。
func (r *PostgresStorageDeletionRepo) ListDue(ctx context.Context, limit int) ([]model.StorageDeletion, error) {
	if limit <= 0 {
		return []model.StorageDeletion{}, nil
	}

	sqlStr, args, err := buildClaimDue(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("削除待ち取得クエリの生成に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("削除待ちの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var deletions []model.StorageDeletion
	for rows.Next() {
		var d model.StorageDeletion
		var lastError sql.NullString
		if err := rows.Scan(&d.ID, &d.StoragePath, &d.Attempts, &lastError, &d.NextAttemptAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("削除待ちの読み取りに失敗しました: %w", err)
		}
		d.LastError = nullStringValue(lastError)
		deletions = append(deletions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("削除待ちの走査に失敗しました: %w", err)
	}
	return deletions, nil
}

// Enqueue はストレージパスを削除待ちに追加する。
func (r *PostgresStorageDeletionRepo) Enqueue(ctx context.Context, storagePath string) error {
	sqlStr, args, err := psql.Insert("storage_deletions").
		Columns("storage_path").
		Values(storagePath).
		ToSql()
	if err != nil {
		return fmt.Errorf("削除待ち追加クエリの生成に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("削除待ちの追加に失敗しました: %w", err)
	}
	return nil
}

// Complete は削除が完了した行を取り除く。
func (r *PostgresStorageDeletionRepo) Complete(ctx context.Context, id int64) error {
	sqlStr, args, err := psql.Delete("storage_deletions").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("削除待ち完了クエリの生成に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("削除待ちの完了に失敗しました: %w", err)
	}
	return nil
}

// Reschedule は失敗した削除の試行回数とエラーを記録し、次回処理時刻を設定する。
func (r *PostgresStorageDeletionRepo) Reschedule(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error {
	sqlStr, args, err := psql.Update("storage_deletions").
		Set("attempts", attempts).
		Set("last_error", lastErr).
		Set("next_attempt_at", next).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("削除待ち再設定クエリの生成に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("削除待ちの再設定に失敗しました: %w", err)
	}
	return nil
}

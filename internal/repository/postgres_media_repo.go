package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/hitoshi/catalog/internal/model"
)

var mediaColumns = []string{
	"id", "asset_id", "kind", "storage_path", "content_type", "size_bytes", "position", "created_at",
}

// PostgresMediaRepo はPostgreSQLを使用したメディアリポジトリ。
type PostgresMediaRepo struct {
	db *sql.DB
}

// NewPostgresMediaRepo はPostgresMediaRepoを生成する。
func NewPostgresMediaRepo(db *sql.DB) *PostgresMediaRepo {
	return &PostgresMediaRepo{db: db}
}

// ListByAsset はアセットのメディアをposition昇順で返す。
func (r *PostgresMediaRepo) ListByAsset(ctx context.Context, assetID string) ([]model.Media, error) {
	if !validUUID(assetID) {
		return []model.Media{}, nil
	}

	sqlStr, args, err := psql.Select(mediaColumns...).
		From("asset_media").
		Where(squirrel.Eq{"asset_id": assetID}).
		OrderBy("position ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("メディア一覧クエリの生成に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("メディア一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	media := []model.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("メディアの読み取りに失敗しました: %w", err)
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メディア一覧の走査に失敗しました: %w", err)
	}
	return media, nil
}

// FindByID は指定IDのメディアを取得する。見つからない場合はnilを返す。
func (r *PostgresMediaRepo) FindByID(ctx context.Context, id string) (*model.Media, error) {
	if !validUUID(id) {
		return nil, nil
	}

	sqlStr, args, err := psql.Select(mediaColumns...).
		From("asset_media").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("メディア取得クエリの生成に失敗しました: %w", err)
	}

	m, err := scanMedia(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メディアの取得に失敗しました: %w", err)
	}
	return &m, nil
}

// buildMediaInsert はメディア作成のクエリを組み立てる。
// positionは同一アセット内の最大値+1を採番する。
func buildMediaInsert(m *model.Media) squirrel.InsertBuilder {
	return psql.Insert("asset_media").
		Columns("asset_id", "kind", "storage_path", "content_type", "size_bytes", "position").
		Values(
			m.AssetID, string(m.Kind), m.StoragePath, m.ContentType, m.SizeBytes,
			squirrel.Expr("COALESCE((SELECT MAX(position) + 1 FROM asset_media WHERE asset_id = ?), 0)", m.AssetID),
		).
		Suffix("RETURNING id, position, created_at")
}

// Create はメディアを作成する。
func (r *PostgresMediaRepo) Create(ctx context.Context, m *model.Media) error {
	sqlStr, args, err := buildMediaInsert(m).ToSql()
	if err != nil {
		return fmt.Errorf("メディア作成クエリの生成に失敗しました: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.Position, &m.CreatedAt); err != nil {
		return fmt.Errorf("メディアの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのメディアを削除する。
func (r *PostgresMediaRepo) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return model.ErrNotFound
	}

	sqlStr, args, err := psql.Delete("asset_media").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("メディア削除クエリの生成に失敗しました: %w", err)
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("メディアの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanMedia(s rowScanner) (model.Media, error) {
	var m model.Media
	err := s.Scan(
		&m.ID, &m.AssetID, &m.Kind, &m.StoragePath,
		&m.ContentType, &m.SizeBytes, &m.Position, &m.CreatedAt,
	)
	return m, err
}

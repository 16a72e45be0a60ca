package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/hitoshi/catalog/internal/model"
)

var assetColumns = []string{
	"id", "entity_type", "slug", "title", "description", "license", "status",
	"category", "direction", "topic", "platforms", "created_at", "updated_at",
}

// PostgresAssetRepo はPostgreSQLを使用したアセットリポジトリ。
type PostgresAssetRepo struct {
	db *sql.DB
}

// NewPostgresAssetRepo はPostgresAssetRepoを生成する。
func NewPostgresAssetRepo(db *sql.DB) *PostgresAssetRepo {
	return &PostgresAssetRepo{db: db}
}

// assetFilter は一覧取得条件からWHERE句を組み立てる。
func assetFilter(q AssetQuery) (squirrel.Eq, error) {
	where := squirrel.Eq{"entity_type": string(q.EntityType)}
	if q.FilterColumn == "" {
		return where, nil
	}
	if !q.FilterColumn.Valid() {
		return nil, fmt.Errorf("絞り込み列が不正です: %q", q.FilterColumn)
	}
	where[string(q.FilterColumn)] = q.FilterValue
	return where, nil
}

// buildListPageQueries は件数取得と行取得のクエリを組み立てる。
func buildListPageQueries(q AssetQuery) (count, rows squirrel.SelectBuilder, err error) {
	if q.Offset < 0 || q.Limit <= 0 {
		return count, rows, fmt.Errorf("ページ範囲が不正です: offset=%d limit=%d", q.Offset, q.Limit)
	}
	where, err := assetFilter(q)
	if err != nil {
		return count, rows, err
	}

	count = psql.Select("count(*)").From("assets").Where(where)
	rows = psql.Select(assetColumns...).
		From("assets").
		Where(where).
		OrderBy("created_at DESC").
		Offset(uint64(q.Offset)).
		Limit(uint64(q.Limit))
	return count, rows, nil
}

// ListPage は条件に一致するアセットを1ページ分取得し、総件数とともに返す。
func (r *PostgresAssetRepo) ListPage(ctx context.Context, q AssetQuery) ([]model.Asset, int, error) {
	countQuery, rowsQuery, err := buildListPageQueries(q)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("件数クエリの生成に失敗しました: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("アセット件数の取得に失敗しました: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return []model.Asset{}, total, nil
	}

	rowsSQL, rowsArgs, err := rowsQuery.ToSql()
	if err != nil {
		return nil, total, fmt.Errorf("一覧クエリの生成に失敗しました: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, rowsSQL, rowsArgs...)
	if err != nil {
		return nil, total, fmt.Errorf("アセット一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	assets := make([]model.Asset, 0, q.Limit)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, total, fmt.Errorf("アセットの読み取りに失敗しました: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, total, fmt.Errorf("アセット一覧の走査に失敗しました: %w", err)
	}

	return assets, total, nil
}

// buildFilterValuesQuery は絞り込み値取得のクエリを組み立てる。
func buildFilterValuesQuery(entity model.EntityType, column model.FilterColumn) (squirrel.SelectBuilder, error) {
	if !column.Valid() {
		return squirrel.SelectBuilder{}, fmt.Errorf("絞り込み列が不正です: %q", column)
	}
	col := string(column)
	return psql.Select(col).
		From("assets").
		Where(squirrel.Eq{"entity_type": string(entity)}).
		Where(squirrel.NotEq{col: nil}).
		OrderBy(col + " ASC"), nil
}

// ListFilterValues は絞り込み列のNULLでない値を昇順で返す。
func (r *PostgresAssetRepo) ListFilterValues(ctx context.Context, entity model.EntityType, column model.FilterColumn) ([]string, error) {
	query, err := buildFilterValuesQuery(entity, column)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("絞り込み値クエリの生成に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("絞り込み値の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("絞り込み値の読み取りに失敗しました: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("絞り込み値の走査に失敗しました: %w", err)
	}
	return values, nil
}

// FindBySlug は種別とslugでアセットを取得する。見つからない場合はnilを返す。
func (r *PostgresAssetRepo) FindBySlug(ctx context.Context, entity model.EntityType, slug string) (*model.Asset, error) {
	return r.findOne(ctx, squirrel.Eq{"entity_type": string(entity), "slug": slug})
}

// FindByID は指定IDのアセットを取得する。見つからない場合はnilを返す。
func (r *PostgresAssetRepo) FindByID(ctx context.Context, id string) (*model.Asset, error) {
	if !validUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *PostgresAssetRepo) findOne(ctx context.Context, where squirrel.Eq) (*model.Asset, error) {
	sqlStr, args, err := psql.Select(assetColumns...).From("assets").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("アセット取得クエリの生成に失敗しました: %w", err)
	}

	a, err := scanAsset(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アセットの取得に失敗しました: %w", err)
	}
	return &a, nil
}

// Create はアセットを作成する。
func (r *PostgresAssetRepo) Create(ctx context.Context, a *model.Asset) error {
	sqlStr, args, err := psql.Insert("assets").
		Columns("entity_type", "slug", "title", "description", "license", "status",
			"category", "direction", "topic", "platforms").
		Values(string(a.EntityType), a.Slug, a.Title, a.Description, a.License, a.Status,
			a.Category, a.Direction, a.Topic, stringArray(a.Platforms)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("アセット作成クエリの生成に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("アセットの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアセットを更新する。
func (r *PostgresAssetRepo) Update(ctx context.Context, a *model.Asset) error {
	if !validUUID(a.ID) {
		return model.ErrNotFound
	}

	sqlStr, args, err := psql.Update("assets").
		SetMap(map[string]any{
			"slug":        a.Slug,
			"title":       a.Title,
			"description": a.Description,
			"license":     a.License,
			"status":      a.Status,
			"category":    a.Category,
			"direction":   a.Direction,
			"topic":       a.Topic,
			"platforms":   stringArray(a.Platforms),
			"updated_at":  squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": a.ID}).
		Suffix("RETURNING entity_type, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("アセット更新クエリの生成に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&a.EntityType, &a.CreatedAt, &a.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.ErrNotFound
	case isUniqueViolation(err):
		return model.ErrDuplicateSlug
	case err != nil:
		return fmt.Errorf("アセットの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのアセットを削除する。
func (r *PostgresAssetRepo) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return model.ErrNotFound
	}

	sqlStr, args, err := psql.Delete("assets").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("アセット削除クエリの生成に失敗しました: %w", err)
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("アセットの削除に失敗しました: %w", err)
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

func scanAsset(s rowScanner) (model.Asset, error) {
	var a model.Asset
	var description, license, status, category, direction, topic sql.NullString
	var platforms pq.StringArray

	err := s.Scan(
		&a.ID, &a.EntityType, &a.Slug, &a.Title,
		&description, &license, &status,
		&category, &direction, &topic, &platforms,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	a.Description = nullStringPtr(description)
	a.License = nullStringPtr(license)
	a.Status = nullStringPtr(status)
	a.Category = nullStringPtr(category)
	a.Direction = nullStringPtr(direction)
	a.Topic = nullStringPtr(topic)
	a.Platforms = []string(platforms)
	return a, nil
}

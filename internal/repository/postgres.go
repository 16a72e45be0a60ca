package repository

import (
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// psql はPostgreSQL向け（$1, $2...）のプレースホルダでSQLを組み立てるビルダー。
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// validUUID はidがUUIDとして解釈できるかを返す。
// UUID列に不正な文字列を渡すとクエリ自体がエラーになるため、事前に弾く。
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// nullStringPtr はsql.NullStringを*stringに変換する。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringArray はNOT NULL制約のあるtext[]列に渡すため、nilスライスを空配列に変換する。
func stringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}

package registry

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// View は一覧の表示形式。
type View string

const (
	ViewCards View = "cards"
	ViewList  View = "list"
)

// ParseView は文字列を表示形式に変換する。未知の値はok=falseを返す。
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewCards, ViewList:
		return View(s), true
	default:
		return "", false
	}
}

// categoryAll は絞り込みなしを表すcategoryパラメータの値。
const categoryAll = "all"

// Query は正規化済みの一覧クエリ。
type Query struct {
	Page int
	// Category は絞り込み値。空文字列は絞り込みなし。
	Category string
	View     View
}

// first はパラメータの最初の値を返す。
func first(values url.Values, key string) (string, bool) {
	vs, ok := values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// ParsePage はページ番号を解釈する。正の整数でない場合は1を返し、MaxPageを超える場合はMaxPageに丸める。
func ParsePage(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case errors.Is(err, strconv.ErrRange) && n > 0:
		return MaxPage
	case err != nil || n <= 0:
		return 1
	case n > MaxPage:
		return MaxPage
	}
	return n
}

// ParseQuery はクエリパラメータを正規化する。不正な値はエラーにせず既定値に置き換える。
// viewパラメータが不正または未指定の場合はviewPref（Cookieの設定）、それも不正ならcardsを使う。
func ParseQuery(values url.Values, viewPref string) Query {
	q := Query{Page: 1, View: ViewCards}

	if raw, ok := first(values, "page"); ok {
		q.Page = ParsePage(raw)
	}

	if raw, ok := first(values, "category"); ok && raw != categoryAll {
		q.Category = raw
	}

	if raw, ok := first(values, "view"); ok {
		if v, ok := ParseView(raw); ok {
			q.View = v
			return q
		}
	}
	if v, ok := ParseView(viewPref); ok {
		q.View = v
	}
	return q
}

// Values はQueryをURLのクエリパラメータに戻す。既定値のパラメータは省略する。
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.View != "" && q.View != ViewCards {
		v.Set("view", string(q.View))
	}
	return v
}

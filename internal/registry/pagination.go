package registry

import "math"

// MaxPage は行範囲の計算がintに収まる最大のページ番号。
const MaxPage = math.MaxInt / PageSize

// PageCount は総件数からページ数を求める。0件でも1ページとする。
func PageCount(totalCount int) int {
	if totalCount <= 0 {
		return 1
	}
	return (totalCount + PageSize - 1) / PageSize
}

// Range はページ番号に対応する行範囲を両端を含む形で返す。
// ページ番号は[1, MaxPage]に丸める。
func Range(page int) (from, to int) {
	page = min(max(page, 1), MaxPage)
	from = (page - 1) * PageSize
	return from, from + PageSize - 1
}

// Neighbors は前後のページ番号を返す。存在しない場合はnil。
func Neighbors(page, pageCount int) (prev, next *int) {
	if page > 1 {
		p := page - 1
		prev = &p
	}
	if page < pageCount {
		n := page + 1
		next = &n
	}
	return prev, next
}

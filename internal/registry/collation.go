package registry

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortFilterValues は重複を除いた絞り込み値をロケールの照合順序で並べて返す。
// バイト順ではキリル文字とラテン文字の並びが崩れるため、必ず照合順序を指定する。
func SortFilterValues(values []string, tag language.Tag) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	// Collatorは並行利用できないため呼び出しごとに生成する
	c := collate.New(tag)
	c.SortStrings(out)
	return out
}

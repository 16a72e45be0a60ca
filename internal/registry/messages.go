package registry

import "golang.org/x/text/language"

var loadErrorMessages = map[language.Base]string{
	mustBase("ru"): "Не удалось загрузить каталог. Попробуйте обновить страницу позже.",
	mustBase("en"): "Could not load the catalog. Please try again later.",
}

func mustBase(s string) language.Base {
	return language.MustParseBase(s)
}

// errorMessage は一覧の読み込み失敗時に表示するメッセージを返す。
// 未対応のロケールでは英語を使う。
func errorMessage(tag language.Tag) string {
	base, _ := tag.Base()
	if msg, ok := loadErrorMessages[base]; ok {
		return msg
	}
	return loadErrorMessages[mustBase("en")]
}

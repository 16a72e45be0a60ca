package middleware

import (
	"net/http"

	"github.com/hitoshi/catalog/internal/pending"
)

// NewPendingMiddleware は状態変更リクエスト（フォーム送信）の処理中、
// 処理中カウンタを1つ占有するミドルウェアを返す。
// パニック時もdeferで解放されるため、カウンタが残ることはない。
func NewPendingMiddleware(coord *pending.Coordinator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			release := coord.Begin()
			defer release()
			next.ServeHTTP(w, r)
		})
	}
}

package purge

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = time.Minute
	// maxBackoff は指数バックオフの最大遅延（6時間）。
	maxBackoff = 6 * time.Hour
	// maxErrorLength はlast_errorに保存するエラーメッセージの最大長（バイト）。
	maxErrorLength = 500
)

// CalculateBackoff は失敗済みの試行回数に基づいて次回までの遅延を計算する。
// 1回目の失敗で1分、以降2倍ずつ増加し、最大6時間。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// truncateError はエラーメッセージを保存用の長さに切り詰める。
func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	// UTF-8の途中で切らないよう、先頭バイトの位置まで戻す
	cut := maxErrorLength
	for cut > 0 && msg[cut]&0xC0 == 0x80 {
		cut--
	}
	return msg[:cut]
}

package pending

import "sync"

// Binding は真偽値の「処理中」フラグをCoordinatorのカウンタに結びつける。
// false→trueの変化でBeginを1回呼び、true→falseの変化またはCloseで対応するReleaseを1回だけ呼ぶ。
// 同じ値の繰り返し設定は何もしないため、カウンタが漏れることはない。
type Binding struct {
	c *Coordinator

	mu      sync.Mutex
	release Release
	closed  bool
}

// Bind はCoordinatorに結びついたBindingを生成する。
func (c *Coordinator) Bind() *Binding {
	return &Binding{c: c}
}

// Set は処理中フラグを更新する。Close後の呼び出しは無視する。
func (b *Binding) Set(pending bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.set(pending)
}

func (b *Binding) set(pending bool) {
	switch {
	case pending && b.release == nil:
		b.release = b.c.Begin()
	case !pending && b.release != nil:
		release := b.release
		b.release = nil
		release()
	}
}

// Pending は現在Beginした状態かどうかを返す。
func (b *Binding) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.release != nil
}

// Close は処理中のままであればReleaseし、以降のSetを無効にする。何度呼んでもよい。
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.set(false)
	b.closed = true
}

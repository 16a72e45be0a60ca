// Package pending はプロセス全体で共有する「処理中」カウンタとナビゲーション先の意図を管理する。
//
// 独立した複数の契機（管理画面のフォーム送信、クライアントの画面遷移、バックグラウンド処理）が
// 1つのローディング表示を共有できるよう、参照カウント方式で処理中の件数を数える。
// 変更の通知は同期的に、変更の順序どおりに全購読者へ配送される。
// 購読者のコールバック内からBegin・Release・SetRouteIntentなどの変更操作を呼んではならない。
package pending

import (
	"sync"
	"sync/atomic"
)

// Release は処理中カウンタを1つ戻す関数。2回目以降の呼び出しは何もしない。
type Release func()

// Listener はカウンタの変更時に新しい値で呼ばれる。
type Listener func(count int)

// IntentListener はナビゲーション先の意図の変更時に呼ばれる。
// 意図が解除された場合はok=falseで呼ばれる。
type IntentListener func(intent string, ok bool)

type listenerEntry struct {
	id uint64
	fn Listener
}

type intentListenerEntry struct {
	id uint64
	fn IntentListener
}

// Coordinator は処理中カウンタとナビゲーション先の意図を保持する。
// ゼロ値は使用できないため、NewCoordinatorで生成すること。
type Coordinator struct {
	// emitMu は変更と通知を直列化する。
	emitMu sync.Mutex

	// count とintent は購読者のコールバック内からも読めるよう、emitMuとは独立に保持する。
	count  atomic.Int64
	intent atomic.Pointer[string]

	mu              sync.Mutex
	nextID          uint64
	listeners       []listenerEntry
	intentListeners []intentListenerEntry
}

// NewCoordinator はCoordinatorを生成する。
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Begin はカウンタを1増やして購読者に通知し、対応するReleaseを返す。
func (c *Coordinator) Begin() Release {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	n := c.count.Add(1)
	c.notify(int(n))

	var once sync.Once
	return func() { once.Do(c.release) }
}

// release はカウンタを1減らして購読者に通知する。カウンタは0未満にならない。
func (c *Coordinator) release() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	n := c.count.Load()
	if n > 0 {
		n--
		c.count.Store(n)
	}
	c.notify(int(n))
}

// Track はfnの実行中だけカウンタを1増やす。
func (c *Coordinator) Track(fn func()) {
	release := c.Begin()
	defer release()
	fn()
}

// Snapshot は現在のカウンタの値を返す。
func (c *Coordinator) Snapshot() int {
	return int(c.count.Load())
}

// Busy は処理中の操作があるかどうかを返す。ローディング表示はこの値がtrueの間だけ表示する。
func (c *Coordinator) Busy() bool {
	return c.Snapshot() > 0
}

// Subscribe はカウンタの購読者を登録し、登録解除用の関数を返す。
func (c *Coordinator) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, e := range c.listeners {
				if e.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Coordinator) notify(count int) {
	c.mu.Lock()
	targets := make([]Listener, len(c.listeners))
	for i, e := range c.listeners {
		targets[i] = e.fn
	}
	c.mu.Unlock()

	for _, fn := range targets {
		fn(count)
	}
}

// SetRouteIntent はナビゲーション先を設定して購読者に通知する。
// 現在と同じ値の場合は何もしない。
func (c *Coordinator) SetRouteIntent(path string) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if cur := c.intent.Load(); cur != nil && *cur == path {
		return
	}
	c.intent.Store(&path)
	c.notifyIntent(path, true)
}

// ClearRouteIntent はナビゲーション先を解除して購読者に通知する。
// 設定されていない場合は何もしない。
func (c *Coordinator) ClearRouteIntent() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if c.intent.Load() == nil {
		return
	}
	c.intent.Store(nil)
	c.notifyIntent("", false)
}

// RouteIntent は現在のナビゲーション先を返す。未設定の場合はok=false。
func (c *Coordinator) RouteIntent() (intent string, ok bool) {
	if cur := c.intent.Load(); cur != nil {
		return *cur, true
	}
	return "", false
}

// SubscribeRouteIntent はナビゲーション先の購読者を登録し、登録解除用の関数を返す。
func (c *Coordinator) SubscribeRouteIntent(fn IntentListener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.intentListeners = append(c.intentListeners, intentListenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, e := range c.intentListeners {
				if e.id == id {
					c.intentListeners = append(c.intentListeners[:i:i], c.intentListeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Coordinator) notifyIntent(intent string, ok bool) {
	c.mu.Lock()
	targets := make([]IntentListener, len(c.intentListeners))
	for i, e := range c.intentListeners {
		targets[i] = e.fn
	}
	c.mu.Unlock()

	for _, fn := range targets {
		fn(intent, ok)
	}
}

// Status はUIへ配信する処理中状態のスナップショット。
type Status struct {
	Pending     int     `json:"pending"`
	Busy        bool    `json:"busy"`
	RouteIntent *string `json:"route_intent"`
}

// Status は現在の状態をまとめて返す。
func (c *Coordinator) Status() Status {
	s := Status{Pending: c.Snapshot()}
	s.Busy = s.Pending > 0
	if intent, ok := c.RouteIntent(); ok {
		s.RouteIntent = &intent
	}
	return s
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/pending"
)

const (
	statusWriteWait    = 10 * time.Second
	statusPongWait     = 60 * time.Second
	statusPingInterval = (statusPongWait * 9) / 10
	statusMaxMessage   = 4096
)

// クライアントから受け取るメッセージ種別
const (
	statusMessageTransition  = "transition"
	statusMessageIntent      = "intent"
	statusMessageIntentClear = "intent_clear"
)

// statusMessage はWebSocketでクライアントから受け取るメッセージ。
//
//	{"type":"transition","pending":true}
//	{"type":"intent","path":"/models?page=2"}
//	{"type":"intent_clear"}
type statusMessage struct {
	Type    string `json:"type"`
	Pending bool   `json:"pending"`
	Path    string `json:"path"`
}

// StatusHandler は処理中状態とナビゲーション先の配信を行うハンドラー。
type StatusHandler struct {
	coord    *pending.Coordinator
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStatusHandler はStatusHandlerを生成する。
// allowedOriginが空でない場合、Originヘッダーが一致しない接続を拒否する。
func NewStatusHandler(coord *pending.Coordinator, allowedOrigin string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		coord:  coord,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
	}
}

// GetStatus はGET /api/status のハンドラー。
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	middleware.WriteJSON(w, http.StatusOK, h.coord.Status())
}

// Stream はGET /api/status/ws のハンドラー。
// 接続ごとにBindingを割り当て、クライアントの遷移開始・終了を共有カウンタに反映する。
// カウンタかナビゲーション先が変わるたびに最新のStatusを送信する。
func (h *StatusHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// 変化の通知は1件に畳み込み、書き込み時に最新のスナップショットを読む
	changed := make(chan struct{}, 1)
	signal := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	unsubscribe := h.coord.Subscribe(func(int) { signal() })
	defer unsubscribe()
	unsubscribeIntent := h.coord.SubscribeRouteIntent(func(string, bool) { signal() })
	defer unsubscribeIntent()

	// Bindingとナビゲーション先の後始末は読み込み側が終了してから行う。
	// 書き込み側が先に終了した場合も、接続を閉じて読み込み側の終了を待つ。
	done := make(chan struct{})
	go func() {
		defer close(done)
		binding := h.coord.Bind()
		lastIntent := h.readLoop(conn, binding)
		binding.Close()
		// 切断したクライアントが設定したナビゲーション先が残っていれば取り消す
		if current, ok := h.coord.RouteIntent(); ok && lastIntent != "" && current == lastIntent {
			h.coord.ClearRouteIntent()
		}
	}()
	defer func() {
		conn.Close()
		<-done
	}()

	ticker := time.NewTicker(statusPingInterval)
	defer ticker.Stop()

	if err := h.writeStatus(conn); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-changed:
			if err := h.writeStatus(conn); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(statusWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *StatusHandler) writeStatus(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(statusWriteWait))
	if err := conn.WriteJSON(h.coord.Status()); err != nil {
		h.logger.Debug("status write failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// readLoop は接続が閉じるまでクライアントのメッセージを処理し、最後に設定したナビゲーション先を返す。
func (h *StatusHandler) readLoop(conn *websocket.Conn, binding *pending.Binding) (lastIntent string) {
	conn.SetReadLimit(statusMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(statusPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(statusPongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway {
				h.logger.Warn("status websocket closed unexpectedly", slog.Int("code", ce.Code))
			}
			return lastIntent
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg statusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid status message", slog.String("error", err.Error()))
			continue
		}

		switch msg.Type {
		case statusMessageTransition:
			binding.Set(msg.Pending)
		case statusMessageIntent:
			if msg.Path == "" {
				continue
			}
			h.coord.SetRouteIntent(msg.Path)
			lastIntent = msg.Path
		case statusMessageIntentClear:
			h.coord.ClearRouteIntent()
			lastIntent = ""
		default:
			h.logger.Debug("unknown status message type", slog.String("type", msg.Type))
		}
	}
}

package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers connect cross-origin during local development; frame access is
	// enforced by the permission check before the upgrade, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeSubscriber upgrades the request to a WebSocket and streams the
// subscriber's events until either side goes away. It blocks until the
// connection is done and always unsubscribes before returning.
func ServeSubscriber(hub *Hub, w http.ResponseWriter, r *http.Request, sub *Subscriber) {
	conn, errUpgrade := upgrader.Upgrade(w, r, nil)
	if errUpgrade != nil {
		hub.Unsubscribe(sub)
		log.Debugf("realtime: upgrade: %v", errUpgrade)
		return
	}
	defer func() {
		hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done)
}

// readPump discards inbound frames; the socket is server-push only. It exists
// to process control frames and detect the peer closing.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, errRead := conn.ReadMessage(); errRead != nil {
			return
		}
	}
}

// writePump pushes events and periodic pings until the subscriber channel
// closes or the peer disappears.
func writePump(conn *websocket.Conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if errWrite := conn.WriteJSON(ev); errWrite != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errPing := conn.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}

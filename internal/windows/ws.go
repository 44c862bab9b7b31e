package windows

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"couriergate/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway fronts its own app origin; upgrades come from it.
		return true
	},
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(message []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

func (c *wsConn) Close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

// windowMessage is what a window reports about itself: HELLO on connect,
// NAVIGATE after in-app navigation.
type windowMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Handler upgrades a window connection and keeps its session registered
// for the lifetime of the socket.
func Handler(hub *Hub, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("window upgrade failed", "err", err.Error())
			return
		}

		id := uuid.NewString()
		c := &wsConn{conn: conn}
		hub.Register(id, "", c)

		pingTicker := time.NewTicker(30 * time.Second)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case <-pingTicker.C:
					if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
						return
					}
				}
			}
		}()
		defer func() {
			close(done)
			pingTicker.Stop()
			hub.Unregister(id)
			c.Close()
		}()

		conn.SetReadLimit(4096)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg windowMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "HELLO", "NAVIGATE":
				hub.Navigate(id, msg.URL)
			}
		}
	}
}

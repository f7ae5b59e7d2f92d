package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kgellert/trimer-client/internal/ws"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

func encode(evt ws.ServerEvent) ([]byte, error) {
	return json.Marshal(evt)
}

// SendEvent queues evt for this connection only.
func (c *Connection) SendEvent(evt ws.ServerEvent) error {
	b, err := encode(evt)
	if err != nil {
		return err
	}
	return c.Send(b)
}

func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send channel closed, say goodbye
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

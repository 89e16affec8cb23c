package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs registers the connection and pumps until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, UserID: userID, Send: make(chan []byte, sendBufferSize)}
	select {
	case hub.register <- client:
	case <-hub.stop:
		return
	}

	go client.writePump()
	client.readPump()
}

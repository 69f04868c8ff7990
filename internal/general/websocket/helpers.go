package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"delivery-track/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (ws *WebSocket) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := ws.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
	ws.writeLocks.Delete(conn)
}

// wsWriteMessage sets a short write deadline and writes a message.
func (ws *WebSocket) wsWriteMessage(conn *websocket.Conn, mt int, payload []byte) error {
	mu := ws.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(mt, payload)
}

// lockOf returns the writer mutex for a specific connection.
func (ws *WebSocket) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := ws.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := ws.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}

// sendEnvelope marshals data into a typed envelope and writes it to one client.
func (ws *WebSocket) sendEnvelope(c *client, msgType string, data any) error {
	payload, err := marshalEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// broadcastEnvelope fans a typed envelope out to a delivery room.
// excludeID may be empty to include every member.
func (ws *WebSocket) broadcastEnvelope(deliveryID, msgType string, data any, excludeID string) {
	payload, err := marshalEnvelope(msgType, data)
	if err != nil {
		return
	}
	ws.rooms.Broadcast(deliveryID, payload, excludeID)
}

// sendError writes an error frame to the originator only.
func (ws *WebSocket) sendError(c *client, code, message string) {
	_ = ws.sendEnvelope(c, "error", contracts.WSError{Code: code, Message: message})
}

// sendAuthSuccess confirms a successful auth frame.
func (ws *WebSocket) sendAuthSuccess(c *client) error {
	return ws.sendEnvelope(c, "auth_success", map[string]any{
		"success":   true,
		"user_id":   c.claims.Subject,
		"role":      c.claims.Role.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func marshalEnvelope(msgType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contracts.WSEnvelope{Type: msgType, Data: raw})
}

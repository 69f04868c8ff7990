package websocket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/general/jwt"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second

	maxSpeedKmh = 350.0
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Options carries the realtime hub tunables.
type Options struct {
	RequireAuth    bool          // reject connections whose first frame is not a valid auth message
	UpdateThrottle time.Duration // minimum gap between accepted location updates per connection
}

// WebSocket fans delivery events out to the subscribers of each session.
// Lifecycle and authorization decisions are delegated to the session service;
// the hub owns connections, rooms and frame routing.
type WebSocket struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	svc        ports.SessionService
	rooms      *Rooms
	opts       Options
	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex
}

// NewWebSocket creates the realtime hub.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, svc ports.SessionService, opts Options) *WebSocket {
	if opts.UpdateThrottle < 0 {
		opts.UpdateThrottle = 0
	}
	return &WebSocket{
		logger: logger,
		jwtMgr: jwtMgr,
		svc:    svc,
		rooms:  NewRooms(),
		opts:   opts,
	}
}

// client is the per-connection state. One connection subscribes to at most
// one delivery at a time; joining another room leaves the previous one.
type client struct {
	ws   *WebSocket
	conn *websocket.Conn
	id   string
	// set after a successful auth frame, nil for anonymous receivers
	claims *jwt.Claims
	// set on join
	deliveryID string
	role       user.Role
	phone      string

	lastUpdateAt time.Time
}

func (c *client) ID() string      { return c.id }
func (c *client) Role() user.Role { return c.role }

// Send writes one text frame under the connection's writer lock.
func (c *client) Send(payload []byte) error {
	return c.ws.wsWriteMessage(c.conn, websocket.TextMessage, payload)
}

// Connect handles GET /ws/delivery: upgrade, optional first-frame auth, then
// the read loop routing delivery frames.
func (ws *WebSocket) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	// Teardown order (LIFO on return):
	defer conn.Close()               // close the socket last
	defer ws.writeLocks.Delete(conn) // forget per-connection mutex (idempotent)

	c := &client{ws: ws, conn: conn, id: connID()}

	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		ws.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return
	}

	// First frame: an auth message when the client has one. Receivers follow
	// a tracking link and carry no account, so anonymous connections are
	// accepted unless auth is required.
	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		ws.logger.Error(r.Context(), "ws_first_frame_failed", "Client disconnected before first frame", err, nil)
		return
	}
	if msgType != websocket.TextMessage {
		ws.sendError(c, "validation_error", "frames must be text")
		return
	}

	var deferred []byte
	if isAuthFrame(firstFrame) {
		res, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, user.RoleDriver, user.RoleReceiver, user.RoleAdmin)
		if err != nil {
			ws.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
			ws.sendError(c, "unauthorized", "authentication failed: invalid token")
			ws.wsWriteClose(conn, websocket.ClosePolicyViolation, "authentication failed")
			return
		}
		c.claims = res.Claims
		if err := ws.sendAuthSuccess(c); err != nil {
			ws.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
			return
		}
	} else if ws.opts.RequireAuth {
		ws.logger.Error(r.Context(), "ws_auth_missing", "First frame was not an auth message", nil, nil)
		ws.sendError(c, "unauthorized", "authentication required: send auth message first")
		ws.wsWriteClose(conn, websocket.ClosePolicyViolation, "authentication required")
		return
	} else {
		// anonymous: treat the first frame as a regular message
		deferred = firstFrame
	}

	ws.logger.Info(r.Context(), "ws_connected", "Realtime connection established", map[string]any{
		"conn_id":       c.id,
		"authenticated": c.claims != nil,
	})

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Ping loop (every 30s) using the per-connection writer lock. The done
	// channel stops the goroutine when the read loop returns; a ticker alone
	// would leave it parked forever once stopped.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			mu := ws.lockOf(conn)
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// Close socket to unblock reader; goroutine exits.
				_ = conn.Close()
				return
			}
		}
	}()

	defer ws.dropFromRoom(r.Context(), c)

	if deferred != nil {
		ws.dispatch(r.Context(), c, deferred)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				ws.logger.Error(r.Context(), "ws_unexpected_close", "Connection closed unexpectedly", err, map[string]any{
					"conn_id": c.id,
				})
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(r.Context(), "ws_connection_closed", "Connection closed normally", map[string]any{
					"conn_id": c.id,
				})
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}
		ws.dispatch(r.Context(), c, payload)
	}
}

// dispatch routes one inbound frame by its envelope type.
func (ws *WebSocket) dispatch(ctx context.Context, c *client, payload []byte) {
	var msg contracts.WSEnvelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		ws.sendError(c, "validation_error", "bad json")
		return
	}

	switch msg.Type {
	case "join_delivery":
		ws.handleJoin(ctx, c, msg.Data)
	case "driver_location_update":
		ws.handleLocationUpdate(ctx, c, msg.Data, user.RoleDriver)
	case "receiver_location_update":
		ws.handleLocationUpdate(ctx, c, msg.Data, user.RoleReceiver)
	case "delivery_status_update":
		ws.handleStatusUpdate(ctx, c, msg.Data)
	case "leave_delivery":
		ws.handleLeave(ctx, c, msg.Data)
	default:
		ws.sendError(c, "validation_error", "unknown message type")
	}
}

// isAuthFrame reports whether the frame looks like an auth message.
func isAuthFrame(frame []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return false
	}
	return probe.Type == "auth"
}

// connID generates a random 24-char hex connection id.
func connID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/ports"
)

// handleJoin subscribes the connection to a delivery room after the session
// service accepts it. A connection holds one room at a time; joining a second
// delivery leaves the first.
func (ws *WebSocket) handleJoin(ctx context.Context, c *client, data json.RawMessage) {
	var req contracts.WSJoinDelivery
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError(c, "validation_error", "bad join_delivery payload")
		return
	}
	if strings.TrimSpace(req.DeliveryID) == "" {
		ws.sendError(c, "validation_error", "delivery_id is required")
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil || role.IsAdmin() {
		ws.sendError(c, "validation_error", "role must be driver or receiver")
		return
	}

	var callerDriverID string
	if role.IsDriver() {
		if c.claims == nil || !c.claims.Role.IsDriver() {
			ws.sendError(c, "unauthorized", "driver role requires an authenticated driver token")
			return
		}
		callerDriverID = c.claims.Subject
	}

	ctx = ws.logger.WithDeliveryID(ctx, req.DeliveryID)
	_, err = ws.svc.Join(ctx, ports.JoinInput{
		SessionID:      req.DeliveryID,
		Role:           role,
		CallerDriverID: callerDriverID,
		Phone:          req.Phone,
	})
	if err != nil {
		ws.sendServiceError(ctx, c, err, "join_delivery")
		return
	}

	if c.deliveryID != "" && c.deliveryID != req.DeliveryID {
		ws.dropFromRoom(ctx, c)
	}

	c.deliveryID = req.DeliveryID
	c.role = role
	c.phone = strings.TrimSpace(req.Phone)
	ws.rooms.Join(req.DeliveryID, c)

	ws.logger.Info(ctx, "ws_room_joined", "Connection joined delivery room", map[string]any{
		"conn_id": c.id,
		"role":    role.String(),
		"members": ws.rooms.Members(req.DeliveryID),
	})

	_ = ws.sendEnvelope(c, "joined_room", contracts.WSJoinedRoom{
		DeliveryID: req.DeliveryID,
		Role:       strings.ToLower(role.String()),
	})
	ws.broadcastEnvelope(req.DeliveryID, "user_joined", contracts.WSUserPresence{
		Role:      strings.ToLower(role.String()),
		Phone:     c.phone,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, c.id)
}

// handleLocationUpdate records one position and fans it out to the rest of
// the room. Updates arriving faster than the throttle window are dropped
// without an error frame.
func (ws *WebSocket) handleLocationUpdate(ctx context.Context, c *client, data json.RawMessage, role user.Role) {
	var req contracts.WSLocationUpdate
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError(c, "validation_error", "bad location payload")
		return
	}

	if c.deliveryID == "" || c.deliveryID != req.DeliveryID {
		ws.sendError(c, "state_error", "join the delivery before sending updates")
		return
	}
	if c.role != role {
		ws.sendError(c, "unauthorized", "connection joined under a different role")
		return
	}

	now := time.Now().UTC()
	if ws.opts.UpdateThrottle > 0 && now.Sub(c.lastUpdateAt) < ws.opts.UpdateThrottle {
		return
	}

	// Out-of-range speeds come from flaky GPS units; keep the fix, zero the speed.
	speed := req.SpeedKmh
	if speed < 0 || speed > maxSpeedKmh {
		speed = 0
	}

	var callerDriverID string
	if role.IsDriver() && c.claims != nil {
		callerDriverID = c.claims.Subject
	}

	ctx = ws.logger.WithDeliveryID(ctx, c.deliveryID)
	_, err := ws.svc.RecordPosition(ctx, ports.RecordPositionInput{
		SessionID:      c.deliveryID,
		Role:           role,
		CallerDriverID: callerDriverID,
		Phone:          c.phone,
		Position: geo.Position{
			Lat:       req.Latitude,
			Lng:       req.Longitude,
			SpeedKmh:  speed,
			Timestamp: now,
		},
		AccuracyM: req.AccuracyM,
	})
	if err != nil {
		ws.sendServiceError(ctx, c, err, "location_update")
		return
	}
	c.lastUpdateAt = now

	broadcastType := "driver_location_update"
	if role.IsReceiver() {
		broadcastType = "receiver_location_update"
	}
	ws.broadcastEnvelope(c.deliveryID, broadcastType, contracts.WSLocationBroadcast{
		DeliveryID: c.deliveryID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		AccuracyM:  req.AccuracyM,
		SpeedKmh:   speed,
		Timestamp:  now.Format(time.RFC3339),
	}, c.id)
}

// handleStatusUpdate applies a driver-requested transition and announces it
// to the whole room, the originator included.
func (ws *WebSocket) handleStatusUpdate(ctx context.Context, c *client, data json.RawMessage) {
	var req contracts.WSStatusUpdate
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError(c, "validation_error", "bad delivery_status_update payload")
		return
	}

	if c.deliveryID == "" || c.deliveryID != req.DeliveryID {
		ws.sendError(c, "state_error", "join the delivery before sending updates")
		return
	}
	if c.claims == nil || !c.claims.Role.IsDriver() || !c.role.IsDriver() {
		ws.sendError(c, "unauthorized", "only the driver may change delivery status")
		return
	}

	target, err := session.ParseStatus(req.Status)
	if err != nil {
		ws.sendError(c, "validation_error", "unknown status")
		return
	}

	ctx = ws.logger.WithDeliveryID(ctx, c.deliveryID)
	sess, err := ws.svc.Transition(ctx, ports.TransitionInput{
		SessionID:      c.deliveryID,
		Target:         target,
		CallerDriverID: c.claims.Subject,
	})
	if err != nil {
		ws.sendServiceError(ctx, c, err, "delivery_status_update")
		return
	}

	ws.broadcastEnvelope(c.deliveryID, "delivery_status_update", contracts.WSStatusBroadcast{
		DeliveryID: c.deliveryID,
		Status:     sess.Status.String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}, "")
}

// handleLeave unsubscribes the connection from its room.
func (ws *WebSocket) handleLeave(ctx context.Context, c *client, data json.RawMessage) {
	var req contracts.WSLeaveDelivery
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError(c, "validation_error", "bad leave_delivery payload")
		return
	}
	if c.deliveryID == "" || (req.DeliveryID != "" && req.DeliveryID != c.deliveryID) {
		ws.sendError(c, "state_error", "not joined to that delivery")
		return
	}
	ws.dropFromRoom(ctx, c)
}

// dropFromRoom removes the client from its current room and announces the
// departure. Safe to call for clients that never joined.
func (ws *WebSocket) dropFromRoom(ctx context.Context, c *client) {
	if c.deliveryID == "" {
		return
	}
	deliveryID := c.deliveryID
	role := c.role
	phone := c.phone
	c.deliveryID = ""

	if !ws.rooms.Leave(deliveryID, c.id) {
		return
	}
	ws.broadcastEnvelope(deliveryID, "user_left", contracts.WSUserPresence{
		Role:      strings.ToLower(role.String()),
		Phone:     phone,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, c.id)
	ws.logger.Info(ctx, "ws_room_left", "Connection left delivery room", map[string]any{
		"conn_id":     c.id,
		"delivery_id": deliveryID,
	})
}

// sendServiceError maps a session service error onto a WS error frame.
func (ws *WebSocket) sendServiceError(ctx context.Context, c *client, err error, op string) {
	code := "internal_error"
	switch {
	case errors.Is(err, session.ErrNotFound):
		code = "not_found"
	case errors.Is(err, session.ErrRoleMismatch):
		code = "unauthorized"
	case errors.Is(err, session.ErrSessionNotActive), errors.Is(err, session.ErrInvalidTransition):
		code = "state_error"
	case errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude),
		errors.Is(err, geo.ErrNonFiniteValue):
		code = "validation_error"
	}
	if code == "internal_error" {
		ws.logger.Error(ctx, "ws_handler_failed", "Realtime operation failed", err, map[string]any{
			"op":      op,
			"conn_id": c.id,
		})
	}
	ws.sendError(c, code, err.Error())
}

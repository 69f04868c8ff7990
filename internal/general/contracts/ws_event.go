package contracts

import "encoding/json"

// WSEnvelope is the minimal envelope every realtime frame uses, both directions.
type WSEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ----- client -> server -----

// WSJoinDelivery subscribes the connection to a delivery room.
type WSJoinDelivery struct {
	DeliveryID string `json:"delivery_id"`
	Role       string `json:"role"`            // "driver" | "receiver"
	Phone      string `json:"phone,omitempty"` // receiver phone, checked only in strict mode
}

// WSLocationUpdate carries one position from either role.
type WSLocationUpdate struct {
	DeliveryID string  `json:"delivery_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AccuracyM  float64 `json:"accuracy,omitempty"`
	SpeedKmh   float64 `json:"speed_kmh,omitempty"`
}

// WSStatusUpdate requests a session status transition (driver only).
type WSStatusUpdate struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

// WSLeaveDelivery unsubscribes the connection from a delivery room.
type WSLeaveDelivery struct {
	DeliveryID string `json:"delivery_id"`
}

// ----- server -> client -----

// WSJoinedRoom confirms a successful subscription to the originator.
type WSJoinedRoom struct {
	DeliveryID string `json:"delivery_id"`
	Role       string `json:"role"`
}

// WSUserPresence is broadcast when someone joins or leaves a room.
type WSUserPresence struct {
	Role      string `json:"role"`
	Phone     string `json:"phone,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WSLocationBroadcast fans an accepted update out to the other subscribers.
type WSLocationBroadcast struct {
	DeliveryID string  `json:"delivery_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AccuracyM  float64 `json:"accuracy,omitempty"`
	SpeedKmh   float64 `json:"speed_kmh,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// WSStatusBroadcast announces a status change to the whole room.
type WSStatusBroadcast struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
}

// WSError is sent back to the originator only.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

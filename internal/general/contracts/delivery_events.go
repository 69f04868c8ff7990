package contracts

import "time"

// DeliveryEventMessage is broadcast by the tracking service on the fanout
// exchange for every lifecycle change and accepted location update.
// Exchange: ExchangeDeliveryFanout (fanout, no routing key).
type DeliveryEventMessage struct {
	DeliveryID string    `json:"delivery_id"`
	Type       string    `json:"type"` // one of the Event* constants
	Status     string    `json:"status,omitempty"`
	Role       string    `json:"role,omitempty"`
	Location   *GeoPoint `json:"location,omitempty"`
	SpeedKMH   float64   `json:"speed_kmh,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}

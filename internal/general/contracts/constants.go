package contracts

// RabbitMQ topology for the delivery notification sink.
const (
	// ExchangeDeliveryFanout receives every delivery event; all subscribers get a copy.
	ExchangeDeliveryFanout = "delivery.events.fanout"

	// QueueDeliveryEvents is the default bound queue for downstream consumers
	// (SMS/notification workers, analytics). The core only publishes.
	QueueDeliveryEvents = "delivery.events"
)

// Delivery event types published to the fanout exchange.
const (
	EventSessionCreated   = "session_created"
	EventSessionStatus    = "session_status_changed"
	EventDriverLocation   = "driver_location"
	EventReceiverLocation = "receiver_location"
)

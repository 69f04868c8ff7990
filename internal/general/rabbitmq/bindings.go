package rabbitmq

import (
	"fmt"

	"delivery-track/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	// 1. Exchange: a single fanout for all delivery events
	if err := ch.ExchangeDeclare(contracts.ExchangeDeliveryFanout, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeDeliveryFanout, err)
	}

	// 2. Default queue so events are not dropped when no consumer declared one yet
	if _, err := ch.QueueDeclare(contracts.QueueDeliveryEvents, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", contracts.QueueDeliveryEvents, err)
	}

	// 3. Binding (fanout: routing key ignored)
	if err := ch.QueueBind(contracts.QueueDeliveryEvents, "", contracts.ExchangeDeliveryFanout, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", contracts.QueueDeliveryEvents, contracts.ExchangeDeliveryFanout, err)
	}

	return nil
}

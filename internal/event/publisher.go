package event

import (
	"encoding/json"

	"github.com/streadway/amqp"
)

// Domain event types.
const (
	AttemptCompleted   = "attempt.completed"
	CertificateIssued  = "certificate.issued"
	CertificateRevoked = "certificate.revoked"
)

// Publisher pushes domain events to interested consumers. Publishing is
// best-effort: failures are logged by the caller, never fail the request.
type Publisher interface {
	Publish(eventType, key string, payload any) error
	Close() error
}

// AMQPPublisher publishes to a durable topic exchange, routing key = event type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(eventType, key string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"type":    eventType,
		"key":     key,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	return p.channel.Publish(p.exchange, eventType, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop is used when no broker is configured; the SQL event log still records
// every event.
type Nop struct{}

func (Nop) Publish(string, string, any) error { return nil }
func (Nop) Close() error                      { return nil }

package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/Eddy0415/PharmaMap-sub000/internal/domain"
)

const exchangeType = "topic"

// RabbitMQ публикует события в topic exchange; routing key = тип события
type RabbitMQ struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// DialRabbitMQ connects with a few retries and declares the exchange.
func DialRabbitMQ(url, exchange string, attempts int) (*RabbitMQ, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("failed to connect to RabbitMQ")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "could not open channel")
	}
	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "could not declare exchange")
	}
	return &RabbitMQ{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "could not marshal %s", event.Type())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.ch.PublishWithContext(ctx,
		r.exchange,
		string(event.Type()),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.AggregateID().String(),
			Timestamp:    event.OccurredAt(),
			Type:         string(event.Type()),
			Body:         body,
		},
	)
	return errors.Wrapf(err, "publish %s", event.Type())
}

func (r *RabbitMQ) Close() error {
	if err := r.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return r.conn.Close()
}

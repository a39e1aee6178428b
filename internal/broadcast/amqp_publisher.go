package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	routingKeyPrefix = "inbox."
	redialInterval   = time.Second
)

var ErrBrokerUnavailable = errors.New("amqp broker unavailable")

// AMQPPublisher forwards events to a durable topic exchange with routing key
// inbox.<event>. A closed connection is redialled on the next Send, at most
// once per redialInterval.
type AMQPPublisher struct {
	url      string
	exchange string
	dial     func(url string) (*amqp091.Connection, error)

	mu       sync.Mutex
	conn     *amqp091.Connection
	lastDial time.Time
	closed   bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, dial: amqp091.Dial}
	if _, err := p.connection(); err != nil {
		return nil, err
	}
	return p, nil
}

// connection returns a live connection, dialling and declaring the exchange
// when the previous one is gone.
func (p *AMQPPublisher) connection() (*amqp091.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	if !p.lastDial.IsZero() && time.Since(p.lastDial) < redialInterval {
		return nil, ErrBrokerUnavailable
	}
	p.lastDial = time.Now()

	if p.conn != nil {
		slog.Warn("amqp connection lost, redialling", "exchange", p.exchange)
		p.conn = nil
	}
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	if err := declareExchange(conn, p.exchange); err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func declareExchange(conn *amqp091.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	)
}

func (p *AMQPPublisher) Send(ctx context.Context, ev Event) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := ev.Frame()
	if err != nil {
		return err
	}

	key := routingKeyPrefix + ev.Name
	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Type:         ev.Name,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		slog.Debug("event published", "key", key, "exchange", p.exchange)
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

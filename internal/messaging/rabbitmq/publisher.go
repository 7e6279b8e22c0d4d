// Package rabbitmq публикует события заказов в topic exchange RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// DefaultExchange — exchange событий заказов.
const DefaultExchange = "foodtrack.orders"

// Channel повторяет часть amqp.Channel, которой пользуется Publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message — тело публикуемого сообщения.
type Message struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Publisher реализует domain.OutboxPublisher поверх одного канала.
// Routing key совпадает с типом события, например order.status_changed.
type Publisher struct {
	mu       *sync.Mutex
	ch       Channel
	exchange string
	logger   *log.Entry
	now      func() time.Time
	declared bool
}

// Session держит соединение и канал, открытые Dial.
type Session struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial подключается к брокеру, открывает канал и возвращает publisher в exchange.
func Dial(url, exchange string, logger *log.Entry) (*Session, *Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &Session{conn: conn, ch: ch}, NewPublisher(ch, exchange, logger), nil
}

// Ping сообщает об утраченном соединении.
func (s *Session) Ping(context.Context) error {
	if s == nil || s.conn == nil || s.conn.IsClosed() || s.ch.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close закрывает канал и соединение.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	_ = s.ch.Close()
	return s.conn.Close()
}

// NewPublisher создаёт publisher; exchange объявляется при первой публикации.
func NewPublisher(ch Channel, exchange string, logger *log.Entry) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	return &Publisher{
		mu:       &sync.Mutex{},
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ForExchange возвращает publisher в другой exchange поверх того же канала (например, для DLQ).
func (p *Publisher) ForExchange(exchange string) *Publisher {
	return &Publisher{
		mu:       p.mu,
		ch:       p.ch,
		exchange: exchange,
		logger:   p.logger.WithField("exchange", exchange),
		now:      p.now,
	}
}

// Publish отправляет persistent JSON-сообщение.
func (p *Publisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("rabbitmq publisher is not initialized")
	}

	body, err := json.Marshal(Message{
		ID:          event.ID,
		OrderID:     event.AggregateID,
		EventType:   event.EventType,
		Payload:     json.RawMessage(event.Payload),
		PublishedAt: p.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}
		p.declared = true
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, event.EventType, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    p.now(),
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}

	p.logger.WithFields(log.Fields{
		"order_id":   event.AggregateID,
		"event_type": event.EventType,
	}).Debug("event published to rabbitmq")
	return nil
}

var _ domain.OutboxPublisher = (*Publisher)(nil)

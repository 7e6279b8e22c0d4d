package domain

import (
	"context"
	"time"
)

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ; ID и OrderID уже назначены.
	Create(ctx context.Context, order *Order) error
	// Save сохраняет изменения с проверкой Version и увеличивает её.
	Save(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error)
}

// Catalog — read-only справочник ресторанов и блюд.
type Catalog interface {
	FindRestaurant(ctx context.Context, id string) (Restaurant, error)
	FindDish(ctx context.Context, id string) (Dish, error)
}

// Locker выдаёт эксклюзивную блокировку по ключу (один писатель на заказ).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Типы событий outbox.
const (
	EventOrderPlaced                = "order.placed"
	EventOrderStatusChanged         = "order.status_changed"
	EventOrderDriverLocationUpdated = "order.driver_location_updated"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

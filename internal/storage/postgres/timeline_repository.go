package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

type timelineRepository struct {
	db dbtx
}

// NewTimelineRepository хранит историю заказа в timeline_events.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, reason, occurred_at) VALUES ($1, $2, $3, $4)`,
		event.OrderID, event.Type, event.Reason, occurred)
	if err != nil {
		return fmt.Errorf("timeline append %s: %w", event.Type, err)
	}
	return nil
}

// List возвращает события заказа в порядке записи; для неизвестного заказа возвращает пустой срез.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	events, err := queryAll(ctx, r.db, func(row rowScanner) (domain.TimelineEvent, error) {
		var e domain.TimelineEvent
		err := row.Scan(&e.OrderID, &e.Type, &e.Reason, &e.Occurred)
		return e, err
	}, `SELECT order_id, type, reason, occurred_at FROM timeline_events WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("timeline list: %w", err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)

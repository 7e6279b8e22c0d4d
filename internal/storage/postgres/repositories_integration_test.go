package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

func integrationOrder(userID, orderID string, createdAt time.Time) *domain.Order {
	return &domain.Order{
		ID:           uuid.NewString(),
		OrderID:      orderID,
		UserID:       userID,
		RestaurantID: "dominos-pizza",
		Items: []domain.OrderItem{
			{ID: uuid.NewString(), DishID: "dominos-margherita", Name: "Margherita Pizza", Quantity: 1, UnitPrice: decimal.NewFromInt(299)},
			{ID: uuid.NewString(), DishID: "dominos-coca-cola", Name: "Coca Cola", Quantity: 2, UnitPrice: decimal.NewFromInt(60)},
		},
		Pricing: domain.Pricing{
			Subtotal:    decimal.NewFromInt(419),
			DeliveryFee: decimal.Zero,
			Tax:         decimal.RequireFromString("20.95"),
			Total:       decimal.RequireFromString("439.95"),
		},
		DeliveryAddress: domain.Address{
			Street: "Race Course Road", City: "Vadodara", State: "Gujarat", ZipCode: "390007",
			Coordinates: domain.Coordinates{Latitude: 22.2950, Longitude: 73.2020},
		},
		RestaurantLocation: domain.Coordinates{Latitude: 22.3106, Longitude: 73.1926},
		Status:             domain.OrderStatusPending,
		Payment:            domain.Payment{Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPending},
		ContactPhone:       "9876543210",
		PlacedAt:           createdAt,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestOrderRepositoryIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	first := integrationOrder("user-1", "ORD-A", base)
	second := integrationOrder("user-1", "ORD-B", base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.ErrorIs(t, repo.Create(ctx, integrationOrder("user-1", "ORD-A", base)), domain.ErrOrderVersionConflict)

	got, err := repo.GetByOrderID(ctx, "ORD-A")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Len(t, got.Items, 2)
	require.True(t, got.Pricing.Total.Equal(first.Pricing.Total))
	require.Equal(t, "dominos-margherita", got.Items[0].DishID)

	list, err := repo.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ORD-B", list[0].OrderID)

	now := base.Add(2 * time.Minute)
	require.NoError(t, got.ApplyStatus(domain.OrderStatusConfirmed, now, nil))
	require.NoError(t, repo.Save(ctx, got))
	require.Equal(t, int64(1), got.Version)

	stale, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	stale.Version = 0
	require.True(t, errors.Is(repo.Save(ctx, stale), domain.ErrOrderVersionConflict))

	reloaded, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusConfirmed, reloaded.Status)
	require.NotNil(t, reloaded.ConfirmedAt)

	_, err = repo.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOutboxAndTimelineIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	outbox := NewOutboxRepository(store)
	timeline := NewTimelineRepository(store)
	ctx := context.Background()

	msg, err := outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "ORD-A", EventType: domain.EventOrderPlaced, Payload: []byte(`{"orderId":"ORD-A"}`)})
	require.NoError(t, err)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	stats, err := outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	require.NoError(t, outbox.MarkSent(ctx, msg.ID))
	require.ErrorIs(t, outbox.MarkSent(ctx, uuid.NewString()), domain.ErrOutboxPublish)

	now := time.Now().UTC()
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "ORD-A", Type: domain.TimelineOrderStatusChanged, Reason: "confirmed", Occurred: now.Add(time.Second)}))
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "ORD-A", Type: domain.TimelineOrderPlaced, Occurred: now}))

	events, err := timeline.List(ctx, "ORD-A")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.TimelineOrderPlaced, events[0].Type)
}

func TestIdempotencyRepositoryIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.CreateProcessing(ctx, "user-1:key", "hash-a", now.Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.CreateProcessing(ctx, "user-1:key", "hash-a", now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing(ctx, "user-1:key", "hash-b", now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone(ctx, "user-1:key", []byte(`{"ok":true}`), 201))
	rec, err := repo.Get(ctx, "user-1:key")
	require.NoError(t, err)
	require.True(t, rec.Replayable())
	require.Equal(t, 201, rec.HTTPStatus)

	_, err = repo.CreateProcessing(ctx, "user-1:old", "hash", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "user-1:old", "hash-new", now.Add(time.Hour))
	require.NoError(t, err, "expired key must be reusable")

	_, err = repo.CreateProcessing(ctx, "user-2:old", "hash", now.Add(-time.Minute))
	require.NoError(t, err)
	removed, err := repo.DeleteExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

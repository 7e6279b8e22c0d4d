package order

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

// Details — заказ с живым трекингом и таймлайном.
type Details struct {
	Order    *domain.Order
	Tracking tracking.View
	Timeline []domain.TimelineEvent
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Service) ListOrders(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	orders, err := s.orders.ListByUser(opCtx, userID, limit)
	if err != nil {
		return nil, infraErr("list orders", err)
	}
	return orders, nil
}

// GetOrder возвращает заказ владельца. Чужой заказ неотличим от несуществующего.
func (s *Service) GetOrder(ctx context.Context, userID, ref string) (Details, error) {
	order, err := s.load(ctx, ref)
	if err != nil {
		return Details{}, err
	}
	if order.UserID != userID {
		return Details{}, domain.ErrOrderNotFound
	}

	details := Details{Order: order, Tracking: s.projector.Project(order, s.now())}
	if s.timeline != nil {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		events, err := s.timeline.List(opCtx, order.ID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.OrderID).Warn("load timeline failed")
		}
		details.Timeline = events
	}
	return details, nil
}

// TrackPublic отдаёт публичный трекинг по номеру заказа, без авторизации.
func (s *Service) TrackPublic(ctx context.Context, orderID string) (tracking.PublicView, error) {
	if orderID == "" {
		return tracking.PublicView{}, domain.NewValidationError("order_id", "is required")
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.orders.GetByOrderID(opCtx, orderID)
	if err != nil {
		return tracking.PublicView{}, infraErr("load order", err)
	}
	return s.projector.Public(order, s.now()), nil
}

// Now возвращает текущее время сервиса; используется транспортами для согласованных ответов.
func (s *Service) Now() time.Time {
	return s.now()
}

package domain

import "time"

// OrderStatus описывает жизненный цикл заказа доставки.
type OrderStatus string

const (
	// OrderStatusPending — заказ оформлен, ресторан ещё не подтвердил.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — ресторан принял заказ, рассчитан ETA.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing — блюда готовятся.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady — заказ собран и ждёт водителя.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusOutForDelivery — водитель забрал заказ.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ вручён клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:          {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
}

// ETAEstimator считает длительность доставки от ресторана до клиента.
// nil-координаты означают, что расстояние неизвестно.
type ETAEstimator interface {
	Estimate(restaurant, delivery *Coordinates, now time.Time) time.Duration
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo проверяет переход по таблице.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ApplyStatus переводит заказ в новый статус и проставляет метку времени перехода.
// Метка ставится только один раз: уже заполненное значение не перезаписывается.
func (o *Order) ApplyStatus(next OrderStatus, now time.Time, estimator ETAEstimator) error {
	if !next.Valid() {
		return NewValidationError("status", "unknown status "+string(next))
	}
	if !o.Status.CanTransitionTo(next) {
		return NewValidationError("status", "cannot move from "+string(o.Status)+" to "+string(next)).
			WithCause(ErrInvalidTransition)
	}

	switch next {
	case OrderStatusConfirmed:
		setOnce(&o.ConfirmedAt, now)
		if estimator != nil {
			var restaurant *Coordinates
			if !o.RestaurantLocation.IsZero() {
				restaurant = &o.RestaurantLocation
			}
			var delivery *Coordinates
			if !o.DeliveryAddress.Coordinates.IsZero() {
				delivery = &o.DeliveryAddress.Coordinates
			}
			o.Tracking.EstimatedDeliveryTime = timePtr(now.Add(estimator.Estimate(restaurant, delivery, now)))
		}
	case OrderStatusPreparing:
		setOnce(&o.PreparingAt, now)
	case OrderStatusReady:
		setOnce(&o.ReadyAt, now)
	case OrderStatusOutForDelivery:
		setOnce(&o.PickedUpAt, now)
	case OrderStatusDelivered:
		setOnce(&o.DeliveredAt, now)
		o.Tracking.ActualDeliveryTime = timePtr(now)
	case OrderStatusCancelled:
		setOnce(&o.CancelledAt, now)
	}

	o.Status = next
	o.UpdatedAt = now
	return nil
}

func setOnce(dst **time.Time, now time.Time) {
	if *dst == nil {
		*dst = timePtr(now)
	}
}

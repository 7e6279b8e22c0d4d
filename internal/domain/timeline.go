package domain

import "time"

// Типы событий таймлайна заказа.
const (
	TimelineOrderPlaced        = "OrderPlaced"
	TimelineOrderStatusChanged = "OrderStatusChanged"
	TimelineDriverAssigned     = "DriverAssigned"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

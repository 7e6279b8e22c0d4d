package order

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

// Event — полезная нагрузка доменных событий в outbox.
type Event struct {
	EventType             string         `json:"event_type"`
	OrderID               string         `json:"order_id"`
	UserID                string         `json:"user_id"`
	RestaurantID          string         `json:"restaurant_id"`
	Status                string         `json:"status"`
	PreviousStatus        string         `json:"previous_status,omitempty"`
	Total                 string         `json:"total,omitempty"`
	EstimatedDeliveryTime *time.Time     `json:"estimated_delivery_time,omitempty"`
	Driver                *EventDriver   `json:"driver,omitempty"`
	Location              *EventLocation `json:"location,omitempty"`
	Occurred              time.Time      `json:"occurred_at"`
}

// EventDriver — водитель в событии.
type EventDriver struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone,omitempty"`
	VehicleNumber string  `json:"vehicle_number,omitempty"`
	Rating        float64 `json:"rating"`
}

// EventLocation — позиция водителя и остаток пути.
type EventLocation struct {
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Address             string    `json:"address,omitempty"`
	DistanceRemainingKm float64   `json:"distance_remaining_km"`
	UpdatedETA          time.Time `json:"updated_eta"`
}

func baseEvent(eventType string, order *domain.Order, occurred time.Time) Event {
	return Event{
		EventType:             eventType,
		OrderID:               order.OrderID,
		UserID:                order.UserID,
		RestaurantID:          order.RestaurantID,
		Status:                string(order.Status),
		EstimatedDeliveryTime: order.Tracking.EstimatedDeliveryTime,
		Occurred:              occurred,
	}
}

func placedEvent(order *domain.Order, now time.Time) Event {
	e := baseEvent(domain.EventOrderPlaced, order, now)
	e.Total = order.Pricing.Total.StringFixed(2)
	return e
}

func statusChangedEvent(order *domain.Order, previous domain.OrderStatus, now time.Time) Event {
	e := baseEvent(domain.EventOrderStatusChanged, order, now)
	e.PreviousStatus = string(previous)
	if d := order.Driver; d != nil {
		e.Driver = &EventDriver{Name: d.Name, Phone: d.Phone, VehicleNumber: d.VehicleNumber, Rating: d.Rating}
	}
	return e
}

func locationEvent(order *domain.Order, update tracking.Update) Event {
	e := baseEvent(domain.EventOrderDriverLocationUpdated, order, update.LastUpdate)
	e.Location = &EventLocation{
		Latitude:            update.CurrentLocation.Latitude,
		Longitude:           update.CurrentLocation.Longitude,
		Address:             update.CurrentLocation.Address,
		DistanceRemainingKm: update.DistanceRemainingKm,
		UpdatedETA:          update.UpdatedETA,
	}
	return e
}

// enqueueEvent кладёт событие в outbox. Заказ уже сохранён, поэтому ошибка только логируется.
func (s *Service) enqueueEvent(ctx context.Context, order *domain.Order, eventType string, event Event) {
	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"order_id": order.OrderID, "event": eventType}).Error("marshal event failed")
		return
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	msg := domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   order.OrderID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(opCtx, msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"order_id": order.OrderID, "event": eventType}).Error("enqueue event failed")
		return
	}
	s.metrics.OutboxEnqueued(eventType)
}

func (s *Service) recordTimeline(ctx context.Context, order *domain.Order, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	event := domain.TimelineEvent{OrderID: order.ID, Type: eventType, Reason: reason, Occurred: occurred}
	if err := s.timeline.Append(opCtx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"order_id": order.OrderID, "event": eventType}).Warn("append timeline event failed")
		return
	}
	s.metrics.TimelineEvent()
}

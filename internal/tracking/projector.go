// Package tracking строит read-only представления живого трекинга заказа.
package tracking

import (
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/geo"
)

// RemainingEstimator даёт оценку оставшегося времени по расстоянию.
type RemainingEstimator interface {
	Remaining(distanceKm float64, now time.Time) time.Duration
	IsPeakHour(now time.Time) bool
}

// View — живой трекинг заказа.
type View struct {
	OrderID                string
	Status                 domain.OrderStatus
	EstimatedDeliveryTime  *time.Time
	ActualDeliveryTime     *time.Time
	CurrentLocation        *domain.LocationSample
	LastUpdate             *time.Time
	DeliveryPath           []domain.LocationSample
	DistanceRemainingKm    *float64
	EstimatedTimeRemaining *time.Duration
	IsPeakHour             bool
}

// Summary — краткая сводка, возвращаемая при оформлении заказа.
type Summary struct {
	OrderID               string
	EstimatedDeliveryTime *time.Time
	Status                domain.OrderStatus
}

// Update описывает ответ на обновление координат водителя.
type Update struct {
	OrderID             string
	CurrentLocation     domain.LocationSample
	DistanceRemainingKm float64
	RemainingTime       time.Duration
	UpdatedETA          time.Time
	LastUpdate          time.Time
}

// PublicView — публичный трекинг по номеру заказа, без полного адреса.
type PublicView struct {
	OrderID      string
	Status       domain.OrderStatus
	Driver       *domain.Driver
	Tracking     View
	Street       string
	City         string
	PlacedAt     time.Time
	RestaurantID string
}

// Projector вычисляет представления, не изменяя заказ.
type Projector struct {
	estimator      RemainingEstimator
	maxPathSamples int
}

// NewProjector создаёт проектор. maxPathSamples <= 0 отключает усечение пути.
func NewProjector(estimator RemainingEstimator, maxPathSamples int) *Projector {
	return &Projector{estimator: estimator, maxPathSamples: maxPathSamples}
}

// Project строит живой трекинг. Расстояние и остаток времени считаются
// только для заказа в пути с известной позицией водителя.
func (p *Projector) Project(order *domain.Order, now time.Time) View {
	t := order.Tracking
	view := View{
		OrderID:               order.OrderID,
		Status:                order.Status,
		EstimatedDeliveryTime: t.EstimatedDeliveryTime,
		ActualDeliveryTime:    t.ActualDeliveryTime,
		LastUpdate:            t.LastLocationUpdate,
		DeliveryPath:          p.truncate(t.DeliveryPath),
		IsPeakHour:            p.estimator.IsPeakHour(now),
	}
	if t.CurrentDriverLocation != nil {
		loc := *t.CurrentDriverLocation
		view.CurrentLocation = &loc
	}

	if order.Status == domain.OrderStatusOutForDelivery && t.CurrentDriverLocation != nil {
		km := geo.Distance(t.CurrentDriverLocation.Coordinates(), order.DeliveryAddress.Coordinates)
		remaining := p.estimator.Remaining(km, now)
		view.DistanceRemainingKm = &km
		view.EstimatedTimeRemaining = &remaining
	}
	return view
}

// Summarize возвращает сводку для ответа на оформление заказа.
func (p *Projector) Summarize(order *domain.Order) Summary {
	return Summary{
		OrderID:               order.OrderID,
		EstimatedDeliveryTime: order.Tracking.EstimatedDeliveryTime,
		Status:                order.Status,
	}
}

// LocationUpdate описывает результат последнего обновления позиции водителя.
// Вызывается после успешного UpdateDriverLocation.
func (p *Projector) LocationUpdate(order *domain.Order, now time.Time) Update {
	var current domain.LocationSample
	if order.Tracking.CurrentDriverLocation != nil {
		current = *order.Tracking.CurrentDriverLocation
	}
	km := geo.Distance(current.Coordinates(), order.DeliveryAddress.Coordinates)
	remaining := p.estimator.Remaining(km, now)
	last := now
	if order.Tracking.LastLocationUpdate != nil {
		last = *order.Tracking.LastLocationUpdate
	}
	return Update{
		OrderID:             order.OrderID,
		CurrentLocation:     current,
		DistanceRemainingKm: km,
		RemainingTime:       remaining,
		UpdatedETA:          now.Add(remaining),
		LastUpdate:          last,
	}
}

// Public строит публичное представление: из адреса остаются только улица и город.
func (p *Projector) Public(order *domain.Order, now time.Time) PublicView {
	var driver *domain.Driver
	if order.Driver != nil {
		d := *order.Driver
		driver = &d
	}
	return PublicView{
		OrderID:      order.OrderID,
		Status:       order.Status,
		Driver:       driver,
		Tracking:     p.Project(order, now),
		Street:       order.DeliveryAddress.Street,
		City:         order.DeliveryAddress.City,
		PlacedAt:     order.PlacedAt,
		RestaurantID: order.RestaurantID,
	}
}

func (p *Projector) truncate(path []domain.LocationSample) []domain.LocationSample {
	if p.maxPathSamples > 0 && len(path) > p.maxPathSamples {
		path = path[len(path)-p.maxPathSamples:]
	}
	return append([]domain.LocationSample(nil), path...)
}

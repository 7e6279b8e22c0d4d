package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

// DriverInfo содержит данные водителя при передаче заказа в доставку.
type DriverInfo struct {
	Name          string
	Phone         string
	VehicleNumber string
	Rating        float64
}

// StatusUpdateRequest описывает смену статуса заказа. OrderRef принимает публичный номер или внутренний ID.
type StatusUpdateRequest struct {
	OrderRef string
	Status   domain.OrderStatus
	Driver   *DriverInfo
}

// LocationUpdateRequest передаёт очередную позиция водителя.
type LocationUpdateRequest struct {
	OrderRef  string
	Latitude  float64
	Longitude float64
	Address   string
}

// UpdateStatus переводит заказ по таблице статусов и при выезде прикрепляет водителя.
func (s *Service) UpdateStatus(ctx context.Context, req StatusUpdateRequest) (*domain.Order, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("update_status", time.Since(start)) }()

	if err := s.validateStatusRequest(req); err != nil {
		return nil, err
	}

	var previous domain.OrderStatus
	order, err := s.mutate(ctx, req.OrderRef, func(order *domain.Order, now time.Time) error {
		previous = order.Status
		if err := order.ApplyStatus(req.Status, now, s.estimator); err != nil {
			return err
		}
		if req.Driver != nil {
			return order.AssignDriver(s.driverFrom(*req.Driver), now)
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, log.Fields{"operation": "update_status", "order_ref": req.OrderRef, "status": req.Status})
		return nil, err
	}

	now := order.UpdatedAt
	s.metrics.StatusTransition(string(order.Status))
	if order.Status == domain.OrderStatusConfirmed && order.Tracking.EstimatedDeliveryTime != nil {
		s.metrics.ETAComputed(order.Tracking.EstimatedDeliveryTime.Sub(now))
	}
	s.recordTimeline(ctx, order, domain.TimelineOrderStatusChanged, string(previous)+" -> "+string(order.Status), now)
	if req.Driver != nil {
		s.recordTimeline(ctx, order, domain.TimelineDriverAssigned, order.Driver.Name, now)
	}
	s.enqueueEvent(ctx, order, domain.EventOrderStatusChanged, statusChangedEvent(order, previous, now))

	s.logger.WithFields(log.Fields{
		"order_id": order.OrderID,
		"from":     previous,
		"to":       order.Status,
	}).Info("order status changed")
	return order, nil
}

func (s *Service) validateStatusRequest(req StatusUpdateRequest) error {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(req.OrderRef) == "" {
		verr.Add("order_id", "is required")
	}
	if !req.Status.Valid() {
		verr.Add("status", "unknown status "+string(req.Status))
	}
	if d := req.Driver; d != nil {
		if req.Status != domain.OrderStatusOutForDelivery {
			verr.Add("driver", "can be set only with status out_for_delivery")
		}
		if strings.TrimSpace(d.Name) == "" {
			verr.Add("driver.name", "is required")
		}
		if d.Phone != "" && !s.phoneRe.MatchString(d.Phone) {
			verr.Add("driver.phone", "must be a valid Indian mobile number")
		}
		if d.Rating < 0 || d.Rating > 5 {
			verr.Add("driver.rating", "must be in [0,5]")
		}
	}
	return verr.OrNil()
}

func (s *Service) driverFrom(info DriverInfo) domain.Driver {
	rating := info.Rating
	if rating == 0 {
		rating = s.business.Tracking.DefaultDriverRating
	}
	return domain.Driver{
		Name:          strings.TrimSpace(info.Name),
		Phone:         strings.TrimSpace(info.Phone),
		VehicleNumber: strings.TrimSpace(info.VehicleNumber),
		Rating:        rating,
	}
}

// UpdateDriverLocation дописывает точку в путь водителя и пересчитывает остаток пути.
func (s *Service) UpdateDriverLocation(ctx context.Context, req LocationUpdateRequest) (tracking.Update, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("update_driver_location", time.Since(start)) }()

	update, err := s.updateDriverLocation(ctx, req)
	if err != nil {
		result := "rejected"
		switch {
		case errors.Is(err, domain.ErrOutOfServiceArea):
			result = "out_of_service_area"
		case errors.Is(err, domain.ErrTransient):
			result = "error"
		}
		s.metrics.LocationUpdate(result)
		s.logFailure(err, log.Fields{"operation": "update_driver_location", "order_ref": req.OrderRef})
		return tracking.Update{}, err
	}
	s.metrics.LocationUpdate("accepted")
	return update, nil
}

func (s *Service) updateDriverLocation(ctx context.Context, req LocationUpdateRequest) (tracking.Update, error) {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(req.OrderRef) == "" {
		verr.Add("order_id", "is required")
	}
	point := domain.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if !point.InRange() {
		verr.Add("coordinates", "latitude must be in [-90,90] and longitude in [-180,180]")
	}
	if err := verr.OrNil(); err != nil {
		return tracking.Update{}, err
	}
	if !s.business.ServiceArea.ContainsPoint(point) {
		return tracking.Update{}, fmt.Errorf("%w: driver (%.6f, %.6f) is outside %s",
			domain.ErrOutOfServiceArea, point.Latitude, point.Longitude, s.business.City)
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = s.business.Tracking.DefaultDriverAddress
	}

	order, err := s.mutate(ctx, req.OrderRef, func(order *domain.Order, now time.Time) error {
		return order.UpdateDriverLocation(point.Latitude, point.Longitude, address, now)
	})
	if err != nil {
		return tracking.Update{}, err
	}

	now := order.UpdatedAt
	update := s.projector.LocationUpdate(order, now)
	s.enqueueEvent(ctx, order, domain.EventOrderDriverLocationUpdated, locationEvent(order, update))
	return update, nil
}

// mutate выполняет load-mutate-persist под блокировкой заказа.
// Конфликт версий (писатель из другого процесса) повторяется с перечитыванием.
func (s *Service) mutate(ctx context.Context, ref string, apply func(order *domain.Order, now time.Time) error) (*domain.Order, error) {
	current, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "order:"+current.ID)
	if err != nil {
		return nil, infraErr("lock order", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		opCtx, cancel := s.withTimeout(ctx)
		order, err := s.orders.Get(opCtx, current.ID)
		if err != nil {
			cancel()
			return nil, infraErr("load order", err)
		}

		if err := apply(order, s.now()); err != nil {
			cancel()
			return nil, err
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			cancel()
			return nil, fmt.Errorf("%w: %w", domain.ErrInvariant, errors.Join(errs...))
		}

		err = s.orders.Save(opCtx, order)
		cancel()
		if err == nil {
			return order, nil
		}
		if !domain.IsVersionConflict(err) || attempt >= maxSaveAttempts {
			return nil, infraErr("save order", err)
		}
		s.logger.WithFields(log.Fields{
			"order_id": order.OrderID,
			"attempt":  attempt,
			"version":  order.Version,
		}).Warn("version conflict detected, retrying")
	}
}

// load ищет заказ по публичному номеру, затем по внутреннему ID.
func (s *Service) load(ctx context.Context, ref string) (*domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.orders.GetByOrderID(opCtx, ref)
	if errors.Is(err, domain.ErrOrderNotFound) && isInternalID(ref) {
		order, err = s.orders.Get(opCtx, ref)
	}
	if err != nil {
		return nil, infraErr("load order", err)
	}
	return order, nil
}

// logFailure пишет в лог отказ: внутренние ошибки как error, временные как warn.
func (s *Service) logFailure(err error, fields log.Fields) {
	entry := s.logger.WithError(err).WithFields(fields)
	switch {
	case errors.Is(err, domain.ErrInvariant):
		entry.Error("order invariant violated")
	case errors.Is(err, domain.ErrTransient):
		entry.Warn("infrastructure unavailable")
	default:
		entry.Debug("request rejected")
	}
}

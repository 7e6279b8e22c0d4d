package grpcapi

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/order"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

// Полные имена методов.
const (
	ServiceName                = "foodtrack.v1.DeliveryService"
	MethodUpdateDriverLocation = "/" + ServiceName + "/UpdateDriverLocation"
	MethodUpdateStatus         = "/" + ServiceName + "/UpdateStatus"
	MethodTrackOrder           = "/" + ServiceName + "/TrackOrder"
)

// DeliveryServer описывает серверную часть DeliveryService.
type DeliveryServer interface {
	UpdateDriverLocation(context.Context, *UpdateDriverLocationRequest) (*UpdateDriverLocationResponse, error)
	UpdateStatus(context.Context, *UpdateStatusRequest) (*UpdateStatusResponse, error)
	TrackOrder(context.Context, *TrackOrderRequest) (*TrackOrderResponse, error)
}

// DeliveryService реализует DeliveryServer поверх сервиса заказов.
type DeliveryService struct {
	orders *order.Service
	hub    *tracking.Hub
	logger *log.Entry
}

// NewDeliveryService создаёт сервис; hub может быть nil.
func NewDeliveryService(orders *order.Service, hub *tracking.Hub, logger *log.Entry) *DeliveryService {
	if logger == nil {
		logger = log.WithField("component", "grpc-delivery")
	}
	return &DeliveryService{orders: orders, hub: hub, logger: logger}
}

// Register регистрирует сервис на gRPC-сервере.
func Register(server grpc.ServiceRegistrar, svc DeliveryServer) {
	server.RegisterService(&serviceDesc, svc)
}

// UpdateDriverLocation принимает координаты водителя.
func (s *DeliveryService) UpdateDriverLocation(ctx context.Context, req *UpdateDriverLocationRequest) (*UpdateDriverLocationResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	update, err := s.orders.UpdateDriverLocation(ctx, order.LocationUpdateRequest{
		OrderRef:  req.OrderID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   req.Address,
	})
	if err != nil {
		return nil, s.statusError(MethodUpdateDriverLocation, req.OrderID, err)
	}
	s.hub.Notify(update.OrderID)

	return &UpdateDriverLocationResponse{
		OrderID:             update.OrderID,
		CurrentLocation:     toLocation(update.CurrentLocation),
		DistanceRemainingKm: update.DistanceRemainingKm,
		RemainingMinutes:    int64(update.RemainingTime.Minutes()),
		UpdatedETA:          update.UpdatedETA,
		LastUpdate:          update.LastUpdate,
	}, nil
}

// UpdateStatus переводит заказ в следующий статус.
func (s *DeliveryService) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*UpdateStatusResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	in := order.StatusUpdateRequest{OrderRef: req.OrderID, Status: domain.OrderStatus(req.Status)}
	if d := req.Driver; d != nil {
		in.Driver = &order.DriverInfo{Name: d.Name, Phone: d.Phone, VehicleNumber: d.VehicleNumber, Rating: d.Rating}
	}
	updated, err := s.orders.UpdateStatus(ctx, in)
	if err != nil {
		return nil, s.statusError(MethodUpdateStatus, req.OrderID, err)
	}
	s.hub.Notify(updated.OrderID)

	return &UpdateStatusResponse{
		OrderID:               updated.OrderID,
		Status:                string(updated.Status),
		EstimatedDeliveryTime: updated.Tracking.EstimatedDeliveryTime,
		Driver:                toDriver(updated.Driver),
	}, nil
}

// TrackOrder возвращает публичный трекинг по номеру заказа.
func (s *DeliveryService) TrackOrder(ctx context.Context, req *TrackOrderRequest) (*TrackOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	view, err := s.orders.TrackPublic(ctx, req.OrderID)
	if err != nil {
		return nil, s.statusError(MethodTrackOrder, req.OrderID, err)
	}

	path := make([]Location, 0, len(view.Tracking.DeliveryPath))
	for _, p := range view.Tracking.DeliveryPath {
		path = append(path, toLocation(p))
	}
	resp := &TrackOrderResponse{
		OrderID:               view.OrderID,
		Status:                string(view.Status),
		Driver:                toDriver(view.Driver),
		DeliveryPath:          path,
		EstimatedDeliveryTime: view.Tracking.EstimatedDeliveryTime,
		DistanceRemainingKm:   view.Tracking.DistanceRemainingKm,
		LastUpdate:            view.Tracking.LastUpdate,
		IsPeakHour:            view.Tracking.IsPeakHour,
		Street:                view.Street,
		City:                  view.City,
	}
	if loc := view.Tracking.CurrentLocation; loc != nil {
		l := toLocation(*loc)
		resp.CurrentLocation = &l
	}
	if d := view.Tracking.EstimatedTimeRemaining; d != nil {
		m := int64(d.Minutes())
		resp.RemainingMinutes = &m
	}
	return resp, nil
}

// statusError переводит доменную ошибку в gRPC-статус.
func (s *DeliveryService) statusError(method, orderID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrOutOfServiceArea):
		return status.Error(codes.OutOfRange, domain.ErrOutOfServiceArea.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrTransient):
		s.logger.WithError(err).WithFields(log.Fields{"method": method, "order_id": orderID}).Warn("transient failure")
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		s.logger.WithError(err).WithFields(log.Fields{"method": method, "order_id": orderID}).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func toLocation(s domain.LocationSample) Location {
	return Location{Latitude: s.Latitude, Longitude: s.Longitude, Address: s.Address, Timestamp: s.Timestamp}
}

func toDriver(d *domain.Driver) *Driver {
	if d == nil {
		return nil
	}
	return &Driver{Name: d.Name, Phone: d.Phone, VehicleNumber: d.VehicleNumber, Rating: d.Rating}
}

var _ DeliveryServer = (*DeliveryService)(nil)

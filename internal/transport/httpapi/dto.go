package httpapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/order"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

type coordinatesJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type addressJSON struct {
	Street      string          `json:"street"`
	City        string          `json:"city"`
	State       string          `json:"state,omitempty"`
	ZipCode     string          `json:"zipCode,omitempty"`
	Coordinates coordinatesJSON `json:"coordinates"`
}

type itemRequestJSON struct {
	DishID   string `json:"dishId"`
	Quantity int32  `json:"quantity"`
}

type placeOrderRequestJSON struct {
	RestaurantID        string            `json:"restaurantId"`
	Items               []itemRequestJSON `json:"items"`
	DeliveryAddress     addressJSON       `json:"deliveryAddress"`
	PaymentMethod       string            `json:"paymentMethod"`
	ContactPhone        string            `json:"contactPhone"`
	SpecialInstructions string            `json:"specialInstructions,omitempty"`
}

func (r placeOrderRequestJSON) toService(userID string) order.PlaceOrderRequest {
	items := make([]order.ItemRequest, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.ItemRequest{DishID: it.DishID, Quantity: it.Quantity})
	}
	return order.PlaceOrderRequest{
		UserID:       userID,
		RestaurantID: r.RestaurantID,
		Items:        items,
		DeliveryAddress: order.AddressRequest{
			Street:    r.DeliveryAddress.Street,
			City:      r.DeliveryAddress.City,
			State:     r.DeliveryAddress.State,
			ZipCode:   r.DeliveryAddress.ZipCode,
			Latitude:  r.DeliveryAddress.Coordinates.Latitude,
			Longitude: r.DeliveryAddress.Coordinates.Longitude,
		},
		PaymentMethod:       domain.PaymentMethod(r.PaymentMethod),
		ContactPhone:        r.ContactPhone,
		SpecialInstructions: r.SpecialInstructions,
	}
}

type driverJSON struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleNumber string  `json:"vehicleNumber,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
}

type statusRequestJSON struct {
	Status     string      `json:"status"`
	DriverInfo *driverJSON `json:"driverInfo,omitempty"`
}

type locationRequestJSON struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address,omitempty"`
}

type locationJSON struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type orderItemJSON struct {
	DishID    string          `json:"dishId"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type paymentJSON struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

type orderTrackingJSON struct {
	EstimatedDeliveryTime *time.Time     `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time     `json:"actualDeliveryTime,omitempty"`
	DriverLocation        *locationJSON  `json:"driverLocation"`
	DeliveryPath          []locationJSON `json:"deliveryPath"`
	LastLocationUpdate    *time.Time     `json:"lastLocationUpdate"`
}

type timestampsJSON struct {
	OrderPlaced time.Time  `json:"orderPlaced"`
	Confirmed   *time.Time `json:"confirmed,omitempty"`
	Preparing   *time.Time `json:"preparing,omitempty"`
	Ready       *time.Time `json:"ready,omitempty"`
	PickedUp    *time.Time `json:"pickedUp,omitempty"`
	Delivered   *time.Time `json:"delivered,omitempty"`
	Cancelled   *time.Time `json:"cancelled,omitempty"`
}

type orderJSON struct {
	ID                  string            `json:"id"`
	OrderID             string            `json:"orderId"`
	UserID              string            `json:"userId"`
	RestaurantID        string            `json:"restaurantId"`
	Items               []orderItemJSON   `json:"items"`
	Subtotal            decimal.Decimal   `json:"subtotal"`
	DeliveryFee         decimal.Decimal   `json:"deliveryFee"`
	Tax                 decimal.Decimal   `json:"tax"`
	Total               decimal.Decimal   `json:"total"`
	DeliveryAddress     addressJSON       `json:"deliveryAddress"`
	RestaurantLocation  coordinatesJSON   `json:"restaurantLocation"`
	Status              string            `json:"status"`
	Payment             paymentJSON       `json:"payment"`
	ContactPhone        string            `json:"contactPhone"`
	SpecialInstructions string            `json:"specialInstructions,omitempty"`
	Driver              *driverJSON       `json:"driver,omitempty"`
	Tracking            orderTrackingJSON `json:"tracking"`
	Timestamps          timestampsJSON    `json:"timestamps"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

type trackingSummaryJSON struct {
	OrderID               string     `json:"orderId"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime"`
	Status                string     `json:"status"`
}

type placeOrderResponseJSON struct {
	Message      string              `json:"message"`
	Order        orderJSON           `json:"order"`
	TrackingInfo trackingSummaryJSON `json:"trackingInfo"`
}

type liveTrackingJSON struct {
	CurrentLocation        *locationJSON  `json:"currentLocation"`
	EstimatedArrival       *time.Time     `json:"estimatedArrival"`
	DistanceRemaining      *float64       `json:"distanceRemaining"`
	EstimatedTimeRemaining *int64         `json:"estimatedTimeRemaining"`
	DeliveryPath           []locationJSON `json:"deliveryPath"`
	LastUpdate             *time.Time     `json:"lastUpdate"`
	IsPeakHour             bool           `json:"isPeakHour"`
}

type timelineEventJSON struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type orderDetailsJSON struct {
	Order        orderJSON           `json:"order"`
	LiveTracking liveTrackingJSON    `json:"liveTracking"`
	Timeline     []timelineEventJSON `json:"timeline"`
}

type statusChangeJSON struct {
	OrderID               string      `json:"orderId"`
	Status                string      `json:"status"`
	EstimatedDeliveryTime *time.Time  `json:"estimatedDeliveryTime"`
	Driver                *driverJSON `json:"driver"`
}

type statusResponseJSON struct {
	Message string           `json:"message"`
	Order   statusChangeJSON `json:"order"`
}

type locationUpdateJSON struct {
	CurrentLocation        locationJSON `json:"currentLocation"`
	DistanceToDestination  string       `json:"distanceToDestination"`
	EstimatedTimeRemaining int64        `json:"estimatedTimeRemaining"`
	UpdatedETA             time.Time    `json:"updatedETA"`
	LastUpdate             time.Time    `json:"lastUpdate"`
}

type locationResponseJSON struct {
	Message  string             `json:"message"`
	Tracking locationUpdateJSON `json:"tracking"`
}

type publicTrackingDetailsJSON struct {
	CurrentLocation        *locationJSON  `json:"currentLocation"`
	EstimatedDeliveryTime  *time.Time     `json:"estimatedDeliveryTime"`
	EstimatedTimeRemaining *int64         `json:"estimatedTimeRemaining"`
	DistanceRemaining      *string        `json:"distanceRemaining"`
	DeliveryPath           []locationJSON `json:"deliveryPath"`
	LastUpdate             *time.Time     `json:"lastUpdate"`
	IsPeakHour             bool           `json:"isPeakHour"`
}

type publicAddressJSON struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

type publicTrackingJSON struct {
	OrderID         string                    `json:"orderId"`
	Status          string                    `json:"status"`
	RestaurantID    string                    `json:"restaurantId"`
	Driver          *driverJSON               `json:"driver"`
	Tracking        publicTrackingDetailsJSON `json:"tracking"`
	DeliveryAddress publicAddressJSON         `json:"deliveryAddress"`
}

func toLocation(s domain.LocationSample) locationJSON {
	return locationJSON{Latitude: s.Latitude, Longitude: s.Longitude, Address: s.Address, Timestamp: s.Timestamp}
}

func toLocationPtr(s *domain.LocationSample) *locationJSON {
	if s == nil {
		return nil
	}
	l := toLocation(*s)
	return &l
}

func toPath(path []domain.LocationSample) []locationJSON {
	out := make([]locationJSON, 0, len(path))
	for _, s := range path {
		out = append(out, toLocation(s))
	}
	return out
}

func toDriver(d *domain.Driver) *driverJSON {
	if d == nil {
		return nil
	}
	return &driverJSON{Name: d.Name, Phone: d.Phone, VehicleNumber: d.VehicleNumber, Rating: d.Rating}
}

func minutes(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	m := int64(d.Minutes())
	return &m
}

func toOrder(o *domain.Order) orderJSON {
	items := make([]orderItemJSON, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemJSON{
			DishID:    it.DishID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
			LineTotal: it.LineTotal(),
		})
	}
	addr := o.DeliveryAddress
	return orderJSON{
		ID:           o.ID,
		OrderID:      o.OrderID,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		Items:        items,
		Subtotal:     o.Pricing.Subtotal,
		DeliveryFee:  o.Pricing.DeliveryFee,
		Tax:          o.Pricing.Tax,
		Total:        o.Pricing.Total,
		DeliveryAddress: addressJSON{
			Street:      addr.Street,
			City:        addr.City,
			State:       addr.State,
			ZipCode:     addr.ZipCode,
			Coordinates: coordinatesJSON{Latitude: addr.Coordinates.Latitude, Longitude: addr.Coordinates.Longitude},
		},
		RestaurantLocation: coordinatesJSON{
			Latitude:  o.RestaurantLocation.Latitude,
			Longitude: o.RestaurantLocation.Longitude,
		},
		Status:              string(o.Status),
		Payment:             paymentJSON{Method: string(o.Payment.Method), Status: string(o.Payment.Status)},
		ContactPhone:        o.ContactPhone,
		SpecialInstructions: o.SpecialInstructions,
		Driver:              toDriver(o.Driver),
		Tracking: orderTrackingJSON{
			EstimatedDeliveryTime: o.Tracking.EstimatedDeliveryTime,
			ActualDeliveryTime:    o.Tracking.ActualDeliveryTime,
			DriverLocation:        toLocationPtr(o.Tracking.CurrentDriverLocation),
			DeliveryPath:          toPath(o.Tracking.DeliveryPath),
			LastLocationUpdate:    o.Tracking.LastLocationUpdate,
		},
		Timestamps: timestampsJSON{
			OrderPlaced: o.PlacedAt,
			Confirmed:   o.ConfirmedAt,
			Preparing:   o.PreparingAt,
			Ready:       o.ReadyAt,
			PickedUp:    o.PickedUpAt,
			Delivered:   o.DeliveredAt,
			Cancelled:   o.CancelledAt,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toPlaceOrderResponse(res order.PlaceOrderResult) placeOrderResponseJSON {
	return placeOrderResponseJSON{
		Message: "Order placed successfully",
		Order:   toOrder(res.Order),
		TrackingInfo: trackingSummaryJSON{
			OrderID:               res.Tracking.OrderID,
			EstimatedDeliveryTime: res.Tracking.EstimatedDeliveryTime,
			Status:                string(res.Tracking.Status),
		},
	}
}

func toDetails(d order.Details) orderDetailsJSON {
	timeline := make([]timelineEventJSON, 0, len(d.Timeline))
	for _, ev := range d.Timeline {
		timeline = append(timeline, timelineEventJSON{Type: ev.Type, Reason: ev.Reason, OccurredAt: ev.Occurred})
	}
	return orderDetailsJSON{
		Order: toOrder(d.Order),
		LiveTracking: liveTrackingJSON{
			CurrentLocation:        toLocationPtr(d.Tracking.CurrentLocation),
			EstimatedArrival:       d.Tracking.EstimatedDeliveryTime,
			DistanceRemaining:      d.Tracking.DistanceRemainingKm,
			EstimatedTimeRemaining: minutes(d.Tracking.EstimatedTimeRemaining),
			DeliveryPath:           toPath(d.Tracking.DeliveryPath),
			LastUpdate:             d.Tracking.LastUpdate,
			IsPeakHour:             d.Tracking.IsPeakHour,
		},
		Timeline: timeline,
	}
}

func toStatusResponse(o *domain.Order) statusResponseJSON {
	return statusResponseJSON{
		Message: "Order status updated successfully",
		Order: statusChangeJSON{
			OrderID:               o.OrderID,
			Status:                string(o.Status),
			EstimatedDeliveryTime: o.Tracking.EstimatedDeliveryTime,
			Driver:                toDriver(o.Driver),
		},
	}
}

func toLocationResponse(u tracking.Update) locationResponseJSON {
	return locationResponseJSON{
		Message: "Location updated successfully",
		Tracking: locationUpdateJSON{
			CurrentLocation:        toLocation(u.CurrentLocation),
			DistanceToDestination:  formatKm(u.DistanceRemainingKm),
			EstimatedTimeRemaining: int64(u.RemainingTime.Minutes()),
			UpdatedETA:             u.UpdatedETA,
			LastUpdate:             u.LastUpdate,
		},
	}
}

func toPublicTracking(v tracking.PublicView) publicTrackingJSON {
	var distance *string
	if v.Tracking.DistanceRemainingKm != nil {
		s := formatKm(*v.Tracking.DistanceRemainingKm)
		distance = &s
	}
	return publicTrackingJSON{
		OrderID:      v.OrderID,
		Status:       string(v.Status),
		RestaurantID: v.RestaurantID,
		Driver:       toDriver(v.Driver),
		Tracking: publicTrackingDetailsJSON{
			CurrentLocation:        toLocationPtr(v.Tracking.CurrentLocation),
			EstimatedDeliveryTime:  v.Tracking.EstimatedDeliveryTime,
			EstimatedTimeRemaining: minutes(v.Tracking.EstimatedTimeRemaining),
			DistanceRemaining:      distance,
			DeliveryPath:           toPath(v.Tracking.DeliveryPath),
			LastUpdate:             v.Tracking.LastUpdate,
			IsPeakHour:             v.Tracking.IsPeakHour,
		},
		DeliveryAddress: publicAddressJSON{Street: v.Street, City: v.City},
	}
}

func formatKm(km float64) string {
	return fmt.Sprintf("%.2f", km)
}

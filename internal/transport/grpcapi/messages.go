package grpcapi

import "time"

// Location — точка трека водителя.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Driver — данные водителя.
type Driver struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleNumber string  `json:"vehicle_number,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
}

// UpdateDriverLocationRequest — очередная позиция водителя по заказу.
type UpdateDriverLocationRequest struct {
	OrderID   string  `json:"order_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// UpdateDriverLocationResponse — принятая позиция и пересчитанный ETA.
type UpdateDriverLocationResponse struct {
	OrderID             string    `json:"order_id"`
	CurrentLocation     Location  `json:"current_location"`
	DistanceRemainingKm float64   `json:"distance_remaining_km"`
	RemainingMinutes    int64     `json:"remaining_minutes"`
	UpdatedETA          time.Time `json:"updated_eta"`
	LastUpdate          time.Time `json:"last_update"`
}

// UpdateStatusRequest — смена статуса; Driver только для out_for_delivery.
type UpdateStatusRequest struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Driver  *Driver `json:"driver,omitempty"`
}

// UpdateStatusResponse — статус после перехода.
type UpdateStatusResponse struct {
	OrderID               string     `json:"order_id"`
	Status                string     `json:"status"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
	Driver                *Driver    `json:"driver,omitempty"`
}

// TrackOrderRequest — запрос публичного трекинга.
type TrackOrderRequest struct {
	OrderID string `json:"order_id"`
}

// TrackOrderResponse — публичный трекинг заказа.
type TrackOrderResponse struct {
	OrderID               string     `json:"order_id"`
	Status                string     `json:"status"`
	Driver                *Driver    `json:"driver,omitempty"`
	CurrentLocation       *Location  `json:"current_location,omitempty"`
	DeliveryPath          []Location `json:"delivery_path"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
	RemainingMinutes      *int64     `json:"remaining_minutes,omitempty"`
	DistanceRemainingKm   *float64   `json:"distance_remaining_km,omitempty"`
	LastUpdate            *time.Time `json:"last_update,omitempty"`
	IsPeakHour            bool       `json:"is_peak_hour"`
	Street                string     `json:"street"`
	City                  string     `json:"city"`
}

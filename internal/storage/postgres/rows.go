package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// JSONB-представления вложенных записей заказа.

type coordinatesJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type addressJSON struct {
	Street      string          `json:"street"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	ZipCode     string          `json:"zipCode"`
	Coordinates coordinatesJSON `json:"coordinates"`
}

type locationSampleJSON struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type trackingJSON struct {
	EstimatedDeliveryTime *time.Time           `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time           `json:"actualDeliveryTime,omitempty"`
	CurrentDriverLocation *locationSampleJSON  `json:"currentDriverLocation,omitempty"`
	DeliveryPath          []locationSampleJSON `json:"deliveryPath"`
	LastLocationUpdate    *time.Time           `json:"lastLocationUpdate,omitempty"`
}

type driverJSON struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleNumber string  `json:"vehicleNumber"`
	Rating        float64 `json:"rating"`
}

type paymentJSON struct {
	Method        string `json:"method"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}

type statusTimestampsJSON struct {
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt *time.Time `json:"preparingAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	PickedUpAt  *time.Time `json:"pickedUpAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// orderDocuments — сериализованные JSONB-колонки заказа.
type orderDocuments struct {
	address    []byte
	restaurant []byte
	tracking   []byte
	driver     []byte
	payment    []byte
	timestamps []byte
}

func encodeOrderDocuments(o *domain.Order) (orderDocuments, error) {
	var (
		docs orderDocuments
		err  error
	)
	a := o.DeliveryAddress
	if docs.address, err = json.Marshal(addressJSON{
		Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode,
		Coordinates: coordinatesJSON(a.Coordinates),
	}); err != nil {
		return docs, fmt.Errorf("encode delivery address: %w", err)
	}
	if docs.restaurant, err = json.Marshal(coordinatesJSON(o.RestaurantLocation)); err != nil {
		return docs, fmt.Errorf("encode restaurant location: %w", err)
	}

	t := o.Tracking
	tj := trackingJSON{
		EstimatedDeliveryTime: t.EstimatedDeliveryTime,
		ActualDeliveryTime:    t.ActualDeliveryTime,
		LastLocationUpdate:    t.LastLocationUpdate,
		DeliveryPath:          make([]locationSampleJSON, 0, len(t.DeliveryPath)),
	}
	if t.CurrentDriverLocation != nil {
		cur := locationSampleJSON(*t.CurrentDriverLocation)
		tj.CurrentDriverLocation = &cur
	}
	for _, s := range t.DeliveryPath {
		tj.DeliveryPath = append(tj.DeliveryPath, locationSampleJSON(s))
	}
	if docs.tracking, err = json.Marshal(tj); err != nil {
		return docs, fmt.Errorf("encode tracking: %w", err)
	}

	if o.Driver != nil {
		if docs.driver, err = json.Marshal(driverJSON(*o.Driver)); err != nil {
			return docs, fmt.Errorf("encode driver: %w", err)
		}
	}
	if docs.payment, err = json.Marshal(paymentJSON{
		Method: string(o.Payment.Method), Status: string(o.Payment.Status), TransactionID: o.Payment.TransactionID,
	}); err != nil {
		return docs, fmt.Errorf("encode payment: %w", err)
	}
	if docs.timestamps, err = json.Marshal(statusTimestampsJSON{
		ConfirmedAt: o.ConfirmedAt, PreparingAt: o.PreparingAt, ReadyAt: o.ReadyAt,
		PickedUpAt: o.PickedUpAt, DeliveredAt: o.DeliveredAt, CancelledAt: o.CancelledAt,
	}); err != nil {
		return docs, fmt.Errorf("encode status timestamps: %w", err)
	}
	return docs, nil
}

func decodeOrderDocuments(o *domain.Order, docs orderDocuments) error {
	var a addressJSON
	if err := json.Unmarshal(docs.address, &a); err != nil {
		return fmt.Errorf("decode delivery address: %w", err)
	}
	o.DeliveryAddress = domain.Address{
		Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode,
		Coordinates: domain.Coordinates(a.Coordinates),
	}

	var rl coordinatesJSON
	if err := json.Unmarshal(docs.restaurant, &rl); err != nil {
		return fmt.Errorf("decode restaurant location: %w", err)
	}
	o.RestaurantLocation = domain.Coordinates(rl)

	var tj trackingJSON
	if err := json.Unmarshal(docs.tracking, &tj); err != nil {
		return fmt.Errorf("decode tracking: %w", err)
	}
	o.Tracking = domain.Tracking{
		EstimatedDeliveryTime: tj.EstimatedDeliveryTime,
		ActualDeliveryTime:    tj.ActualDeliveryTime,
		LastLocationUpdate:    tj.LastLocationUpdate,
	}
	if tj.CurrentDriverLocation != nil {
		cur := domain.LocationSample(*tj.CurrentDriverLocation)
		o.Tracking.CurrentDriverLocation = &cur
	}
	for _, s := range tj.DeliveryPath {
		o.Tracking.DeliveryPath = append(o.Tracking.DeliveryPath, domain.LocationSample(s))
	}

	if len(docs.driver) > 0 && string(docs.driver) != "null" {
		var d driverJSON
		if err := json.Unmarshal(docs.driver, &d); err != nil {
			return fmt.Errorf("decode driver: %w", err)
		}
		driver := domain.Driver(d)
		o.Driver = &driver
	}

	var p paymentJSON
	if err := json.Unmarshal(docs.payment, &p); err != nil {
		return fmt.Errorf("decode payment: %w", err)
	}
	o.Payment = domain.Payment{
		Method: domain.PaymentMethod(p.Method), Status: domain.PaymentStatus(p.Status), TransactionID: p.TransactionID,
	}

	var ts statusTimestampsJSON
	if err := json.Unmarshal(docs.timestamps, &ts); err != nil {
		return fmt.Errorf("decode status timestamps: %w", err)
	}
	o.ConfirmedAt, o.PreparingAt, o.ReadyAt = ts.ConfirmedAt, ts.PreparingAt, ts.ReadyAt
	o.PickedUpAt, o.DeliveredAt, o.CancelledAt = ts.PickedUpAt, ts.DeliveredAt, ts.CancelledAt
	return nil
}

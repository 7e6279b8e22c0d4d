package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem — позиция заказа. Цена фиксируется в момент оформления и дальше не меняется.
type OrderItem struct {
	ID        string
	DishID    string
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// LineTotal возвращает стоимость позиции: цена * количество.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Pricing — расчёт стоимости заказа в рупиях.
type Pricing struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Driver содержит данные водителя, они заполняются при переходе в out_for_delivery.
type Driver struct {
	Name          string
	Phone         string
	VehicleNumber string
	Rating        float64
}

// Tracking хранит трекинг доставки. DeliveryPath только растёт.
type Tracking struct {
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
	CurrentDriverLocation *LocationSample
	DeliveryPath          []LocationSample
	LastLocationUpdate    *time.Time
}

// Order — агрегат заказа еды с доставкой.
type Order struct {
	// ID — внутренний идентификатор (UUID).
	ID string
	// OrderID — публичный читаемый номер заказа, по нему работает трекинг.
	OrderID string

	UserID       string
	RestaurantID string
	Items        []OrderItem
	Pricing      Pricing

	DeliveryAddress    Address
	RestaurantLocation Coordinates

	Status   OrderStatus
	Tracking Tracking
	Driver   *Driver
	Payment  Payment

	ContactPhone        string
	SpecialInstructions string

	PlacedAt    time.Time
	ConfirmedAt *time.Time
	PreparingAt *time.Time
	ReadyAt     *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.RestaurantID == "" {
		errs = append(errs, ErrRestaurantRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.DeliveryAddress.Coordinates.IsZero() {
		errs = append(errs, ErrDeliveryCoordinatesRequired)
	}

	p := o.Pricing
	if p.Subtotal.IsNegative() || p.DeliveryFee.IsNegative() || p.Tax.IsNegative() || p.Total.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.LineTotal())
	}
	if !calc.Equal(p.Subtotal) {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if !p.Subtotal.Add(p.DeliveryFee).Add(p.Tax).Equal(p.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// UpdateDriverLocation фиксирует новую позицию водителя и дописывает её в путь.
// Точки принимаются в любом нетерминальном статусе, ранее записанные не изменяются.
func (o *Order) UpdateDriverLocation(lat, lon float64, address string, now time.Time) error {
	if o.Status.IsTerminal() {
		return NewValidationError("status", "order is "+string(o.Status)+", location updates are closed").
			WithCause(ErrOrderNotTrackable)
	}

	sample := LocationSample{Latitude: lat, Longitude: lon, Address: address, Timestamp: now}
	current := sample
	o.Tracking.CurrentDriverLocation = &current
	o.Tracking.DeliveryPath = append(o.Tracking.DeliveryPath, sample)
	o.Tracking.LastLocationUpdate = timePtr(now)
	o.UpdatedAt = now
	return nil
}

// AssignDriver прикрепляет водителя к заказу.
func (o *Order) AssignDriver(driver Driver, now time.Time) error {
	if o.Status != OrderStatusOutForDelivery {
		return NewValidationError("driver", ErrDriverAssignment.Error()).WithCause(ErrDriverAssignment)
	}
	d := driver
	o.Driver = &d
	o.UpdatedAt = now
	return nil
}

// Clone возвращает глубокую копию заказа, чтобы репозитории не делили срезы и указатели.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Tracking.DeliveryPath = append([]LocationSample(nil), o.Tracking.DeliveryPath...)
	c.Tracking.EstimatedDeliveryTime = copyTime(o.Tracking.EstimatedDeliveryTime)
	c.Tracking.ActualDeliveryTime = copyTime(o.Tracking.ActualDeliveryTime)
	c.Tracking.LastLocationUpdate = copyTime(o.Tracking.LastLocationUpdate)
	if o.Tracking.CurrentDriverLocation != nil {
		loc := *o.Tracking.CurrentDriverLocation
		c.Tracking.CurrentDriverLocation = &loc
	}
	if o.Driver != nil {
		d := *o.Driver
		c.Driver = &d
	}
	c.ConfirmedAt = copyTime(o.ConfirmedAt)
	c.PreparingAt = copyTime(o.PreparingAt)
	c.ReadyAt = copyTime(o.ReadyAt)
	c.PickedUpAt = copyTime(o.PickedUpAt)
	c.DeliveredAt = copyTime(o.DeliveredAt)
	c.CancelledAt = copyTime(o.CancelledAt)
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

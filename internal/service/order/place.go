package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/config"
	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

// ItemRequest — позиция в запросе на оформление.
type ItemRequest struct {
	DishID   string
	Quantity int32
}

// AddressRequest — адрес доставки с обязательными координатами.
type AddressRequest struct {
	Street    string
	City      string
	State     string
	ZipCode   string
	Latitude  float64
	Longitude float64
}

// PlaceOrderRequest — запрос клиента на оформление заказа.
type PlaceOrderRequest struct {
	UserID              string
	RestaurantID        string
	Items               []ItemRequest
	DeliveryAddress     AddressRequest
	PaymentMethod       domain.PaymentMethod
	ContactPhone        string
	SpecialInstructions string
}

// PlaceOrderResult — созданный заказ и краткая сводка трекинга.
type PlaceOrderResult struct {
	Order    *domain.Order
	Tracking tracking.Summary
}

// PlaceOrder проверяет запрос, считает стоимость по текущим ценам каталога и сохраняет заказ.
// При любой ошибке заказ не сохраняется.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("place_order", time.Since(start)) }()

	result, err := s.placeOrder(ctx, req)
	if err != nil {
		s.metrics.OrderPlaceFailed(failureReason(err))
		s.logFailure(err, log.Fields{"operation": "place_order", "user_id": req.UserID, "restaurant_id": req.RestaurantID})
		return PlaceOrderResult{}, err
	}
	s.metrics.OrderPlaced()
	return result, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	if err := s.validatePlacement(req); err != nil {
		return PlaceOrderResult{}, err
	}

	delivery := domain.Coordinates{Latitude: req.DeliveryAddress.Latitude, Longitude: req.DeliveryAddress.Longitude}
	if !s.business.ServiceArea.ContainsPoint(delivery) {
		return PlaceOrderResult{}, fmt.Errorf("%w: delivery (%.6f, %.6f) is outside %s",
			domain.ErrOutOfServiceArea, delivery.Latitude, delivery.Longitude, s.business.City)
	}

	restaurant, items, err := s.resolveCatalog(ctx, req)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	restaurantLocation := s.business.DefaultRestaurantLocation.Coordinates()
	if restaurant.Location != nil && !restaurant.Location.IsZero() {
		restaurantLocation = *restaurant.Location
	}

	now := s.now()
	estimate := s.estimator.Estimate(nil, nil, now)
	estimated := now.Add(estimate)

	order := &domain.Order{
		ID:           newID(),
		OrderID:      s.orderID(now),
		UserID:       req.UserID,
		RestaurantID: restaurant.ID,
		Items:        items,
		Pricing:      computePricing(s.business.Pricing, items),
		DeliveryAddress: domain.Address{
			Street:      strings.TrimSpace(req.DeliveryAddress.Street),
			City:        s.business.City,
			State:       strings.TrimSpace(req.DeliveryAddress.State),
			ZipCode:     strings.TrimSpace(req.DeliveryAddress.ZipCode),
			Coordinates: delivery,
		},
		RestaurantLocation:  restaurantLocation,
		Status:              domain.OrderStatusPending,
		Tracking:            domain.Tracking{EstimatedDeliveryTime: &estimated},
		Payment:             domain.Payment{Method: req.PaymentMethod, Status: domain.PaymentStatusPending},
		ContactPhone:        strings.TrimSpace(req.ContactPhone),
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
		PlacedAt:            now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if order.DeliveryAddress.State == "" {
		order.DeliveryAddress.State = s.business.State
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: %w", domain.ErrInvariant, errors.Join(errs...))
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.orders.Create(opCtx, order); err != nil {
		return PlaceOrderResult{}, infraErr("create order", err)
	}

	s.recordTimeline(ctx, order, domain.TimelineOrderPlaced, "", now)
	s.enqueueEvent(ctx, order, domain.EventOrderPlaced, placedEvent(order, now))

	s.logger.WithFields(log.Fields{
		"order_id": order.OrderID,
		"user_id":  order.UserID,
		"total":    order.Pricing.Total.StringFixed(2),
	}).Info("order placed")

	return PlaceOrderResult{Order: order, Tracking: s.projector.Summarize(order)}, nil
}

func (s *Service) validatePlacement(req PlaceOrderRequest) error {
	verr := &domain.ValidationError{}

	if strings.TrimSpace(req.UserID) == "" {
		verr.Add("user_id", "is required")
	}
	if !s.idRe.MatchString(req.RestaurantID) {
		verr.Add("restaurant_id", "is malformed")
	}
	if len(req.Items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	for i, item := range req.Items {
		field := "items[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(item.DishID) == "" {
			verr.Add(field+".dish_id", "is required")
		}
		if item.Quantity < 1 {
			verr.Add(field+".quantity", "must be at least 1")
		}
	}

	addr := req.DeliveryAddress
	if strings.TrimSpace(addr.Street) == "" {
		verr.Add("delivery_address.street", "is required")
	}
	if !strings.EqualFold(strings.TrimSpace(addr.City), s.business.City) {
		verr.Add("delivery_address.city", "delivery is available only in "+s.business.City)
	}
	coords := domain.Coordinates{Latitude: addr.Latitude, Longitude: addr.Longitude}
	switch {
	case coords.IsZero():
		verr.Add("delivery_address.coordinates", "are required")
	case !coords.InRange():
		verr.Add("delivery_address.coordinates", "latitude must be in [-90,90] and longitude in [-180,180]")
	}

	if !req.PaymentMethod.Valid() {
		verr.Add("payment_method", "must be one of cash, card, digital_wallet, upi")
	}
	if !s.phoneRe.MatchString(strings.TrimSpace(req.ContactPhone)) {
		verr.Add("contact_phone", "must be a valid Indian mobile number")
	}

	return verr.OrNil()
}

// resolveCatalog находит ресторан и фиксирует текущие цены блюд.
func (s *Service) resolveCatalog(ctx context.Context, req PlaceOrderRequest) (domain.Restaurant, []domain.OrderItem, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	restaurant, err := s.catalog.FindRestaurant(opCtx, req.RestaurantID)
	if err != nil {
		return domain.Restaurant{}, nil, infraErr("find restaurant", err)
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, line := range req.Items {
		dish, err := s.catalog.FindDish(opCtx, line.DishID)
		if err != nil {
			return domain.Restaurant{}, nil, infraErr("find dish", fmt.Errorf("items[%d]: %w", i, err))
		}
		if dish.RestaurantID != restaurant.ID {
			return domain.Restaurant{}, nil, fmt.Errorf("items[%d]: %w: %s is not on the menu of %s",
				i, domain.ErrDishNotFound, line.DishID, restaurant.ID)
		}
		if !dish.Available {
			return domain.Restaurant{}, nil, domain.NewValidationError(
				"items["+strconv.Itoa(i)+"].dish_id", dish.Name+" is currently unavailable")
		}
		items = append(items, domain.OrderItem{
			ID:        newID(),
			DishID:    dish.ID,
			Name:      dish.Name,
			Quantity:  line.Quantity,
			UnitPrice: dish.Price,
		})
	}
	return restaurant, items, nil
}

// computePricing: доставка бесплатна при subtotal выше порога, налог округляется до пайсы.
func computePricing(policy config.Pricing, items []domain.OrderItem) domain.Pricing {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	fee := policy.DeliveryFee
	if subtotal.GreaterThan(policy.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}
	tax := subtotal.Mul(policy.TaxRate).Round(2)

	return domain.Pricing{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		Total:       subtotal.Add(fee).Add(tax),
	}
}

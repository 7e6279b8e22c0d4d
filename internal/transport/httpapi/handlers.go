package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/idempotency"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/order"
)

// HeaderIdempotencyKey — ключ идемпотентности оформления заказа.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

func badBody(err error) error {
	return domain.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return s.fail(c, domain.NewValidationError("limit", "must be a non-negative integer"))
		}
		limit = n
	}

	orders, err := s.orders.ListOrders(c.UserContext(), userID(c), limit)
	if err != nil {
		return s.fail(c, err)
	}
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return c.JSON(out)
}

func (s *Server) placeOrder(c *fiber.Ctx) error {
	var body placeOrderRequestJSON
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return s.fail(c, badBody(err))
	}
	user := userID(c)
	key := utils.CopyString(c.Get(HeaderIdempotencyKey))

	if s.guard == nil || key == "" {
		status, payload := s.renderPlaceOrder(c.UserContext(), body.toService(user))
		return c.Status(status).Type("json").Send(payload)
	}

	hash, err := idempotency.RequestHash(body)
	if err != nil {
		return s.fail(c, err)
	}
	resp, err := s.guard.Execute(c.UserContext(), idempotency.Key(user, key), hash, func(ctx context.Context) idempotency.Response {
		status, payload := s.renderPlaceOrder(ctx, body.toService(user))
		return idempotency.Response{Status: status, Body: payload}
	})
	if err != nil {
		return s.fail(c, err)
	}
	if resp.Replayed {
		c.Set(headerReplayed, "true")
	}
	return c.Status(resp.Status).Type("json").Send(resp.Body)
}

// renderPlaceOrder оформляет заказ и сразу сериализует ответ, чтобы его можно было сохранить для повтора.
func (s *Server) renderPlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (int, []byte) {
	status := http.StatusCreated
	var payload any
	res, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		var internal bool
		status, payload, internal = describeError(err)
		if internal {
			s.logger.WithError(err).WithField("user_id", req.UserID).Error("place order failed")
		}
	} else {
		payload = toPlaceOrderResponse(res)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Error("marshal place order response")
		data, _ = json.Marshal(errorJSON{Code: codeServerError, Message: "Server error"})
		return http.StatusInternalServerError, data
	}
	return status, data
}

func (s *Server) getOrder(c *fiber.Ctx) error {
	details, err := s.orders.GetOrder(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toDetails(details))
}

func (s *Server) updateStatus(c *fiber.Ctx) error {
	var body statusRequestJSON
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return s.fail(c, badBody(err))
	}

	req := order.StatusUpdateRequest{OrderRef: c.Params("id"), Status: domain.OrderStatus(body.Status)}
	if d := body.DriverInfo; d != nil {
		req.Driver = &order.DriverInfo{Name: d.Name, Phone: d.Phone, VehicleNumber: d.VehicleNumber, Rating: d.Rating}
	}

	updated, err := s.orders.UpdateStatus(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	s.hub.Notify(updated.OrderID)
	return c.JSON(toStatusResponse(updated))
}

func (s *Server) updateLocation(c *fiber.Ctx) error {
	var body locationRequestJSON
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return s.fail(c, badBody(err))
	}
	missing := &domain.ValidationError{}
	if body.Latitude == nil {
		missing.Add("latitude", "is required")
	}
	if body.Longitude == nil {
		missing.Add("longitude", "is required")
	}
	if err := missing.OrNil(); err != nil {
		return s.fail(c, err)
	}

	update, err := s.orders.UpdateDriverLocation(c.UserContext(), order.LocationUpdateRequest{
		OrderRef:  c.Params("id"),
		Latitude:  *body.Latitude,
		Longitude: *body.Longitude,
		Address:   body.Address,
	})
	if err != nil {
		return s.fail(c, err)
	}
	s.hub.Notify(update.OrderID)
	return c.JSON(toLocationResponse(update))
}

func (s *Server) trackPublic(c *fiber.Ctx) error {
	view, err := s.orders.TrackPublic(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toPublicTracking(view))
}

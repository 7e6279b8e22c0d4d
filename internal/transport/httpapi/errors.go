package httpapi

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// Стабильные коды ошибок API.
const (
	codeValidation        = "validation_error"
	codeInvalidTransition = "invalid_status_transition"
	codeOrderNotFound     = "order_not_found"
	codeRestaurantMissing = "restaurant_not_found"
	codeDishMissing       = "dish_not_found"
	codeOutOfServiceArea  = "out_of_service_area"
	codeUnavailable       = "temporarily_unavailable"
	codeKeyReused         = "idempotency_key_reused"
	codeInProgress        = "request_in_progress"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeUpgradeRequired   = "upgrade_required"
	codeServerError       = "server_error"
)

type fieldErrorJSON struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorJSON struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Fields  []fieldErrorJSON `json:"fields,omitempty"`
}

// describeError переводит ошибку сервиса в HTTP-статус и тело ответа.
// internal=true означает, что детали наружу не отдаются.
func describeError(err error) (status int, body errorJSON, internal bool) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		body = errorJSON{Code: codeValidation, Message: "request validation failed"}
		if errors.Is(err, domain.ErrInvalidTransition) {
			body.Code = codeInvalidTransition
			body.Message = domain.ErrInvalidTransition.Error()
		}
		for _, f := range validation.Fields {
			body.Fields = append(body.Fields, fieldErrorJSON{Field: f.Field, Message: f.Message})
		}
		return http.StatusBadRequest, body, false
	case errors.Is(err, domain.ErrOutOfServiceArea):
		return http.StatusBadRequest, errorJSON{Code: codeOutOfServiceArea, Message: err.Error()}, false
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorJSON{Code: codeOrderNotFound, Message: "Order not found"}, false
	case errors.Is(err, domain.ErrRestaurantNotFound):
		return http.StatusNotFound, errorJSON{Code: codeRestaurantMissing, Message: "Restaurant not found"}, false
	case errors.Is(err, domain.ErrDishNotFound):
		return http.StatusNotFound, errorJSON{Code: codeDishMissing, Message: err.Error()}, false
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, errorJSON{Code: codeKeyReused, Message: err.Error()}, false
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict, errorJSON{Code: codeInProgress, Message: "request with this idempotency key is still in progress"}, false
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, errorJSON{Code: codeUnavailable, Message: "service temporarily unavailable, retry later"}, true
	default:
		return http.StatusInternalServerError, errorJSON{Code: codeServerError, Message: "Server error"}, true
	}
}

// fail пишет ответ с ошибкой; внутренние ошибки логируются целиком.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, body, internal := describeError(err)
	if internal {
		s.logger.WithError(err).WithFields(log.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
		}).Error("request failed")
	}
	return c.Status(status).JSON(body)
}

// handleFiberError обрабатывает ошибки роутера (нет маршрута, не тот метод и т.п.).
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return s.fail(c, err)
	}
	code := codeServerError
	switch fe.Code {
	case fiber.StatusNotFound:
		code = codeNotFound
	case fiber.StatusUnauthorized:
		code = codeUnauthorized
	case fiber.StatusUpgradeRequired:
		code = codeUpgradeRequired
	case fiber.StatusBadRequest:
		code = codeValidation
	}
	return c.Status(fe.Code).JSON(errorJSON{Code: code, Message: fe.Message})
}

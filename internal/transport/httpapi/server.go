// Package httpapi содержит клиентский HTTP API заказов и живой трекинг по websocket.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/metrics"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/idempotency"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/order"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

const (
	defaultPushInterval = 10 * time.Second
	defaultBodyLimit    = 1 << 20
)

// Options — зависимости HTTP-сервера.
type Options struct {
	Orders *order.Service
	// Guard включает Idempotency-Key для POST /api/orders; nil отключает.
	Guard           *idempotency.Guard
	Hub             *tracking.Hub
	JWTSecret       []byte
	Logger          *log.Entry
	HTTPMetrics     *metrics.HTTPMetrics
	TrackingMetrics *metrics.TrackingMetrics
	PushInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Server собирает fiber-приложение с маршрутами заказов.
type Server struct {
	app          *fiber.App
	orders       *order.Service
	guard        *idempotency.Guard
	hub          *tracking.Hub
	secret       []byte
	logger       *log.Entry
	httpMetrics  *metrics.HTTPMetrics
	tracking     *metrics.TrackingMetrics
	pushInterval time.Duration
}

// New собирает приложение и регистрирует маршруты.
func New(opts Options) (*Server, error) {
	if opts.Orders == nil {
		return nil, errors.New("order service is required")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "http-api")
	}
	if opts.Hub == nil {
		opts.Hub = tracking.NewHub()
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = defaultPushInterval
	}

	s := &Server{
		orders:       opts.Orders,
		guard:        opts.Guard,
		hub:          opts.Hub,
		secret:       opts.JWTSecret,
		logger:       opts.Logger,
		httpMetrics:  opts.HTTPMetrics,
		tracking:     opts.TrackingMetrics,
		pushInterval: opts.PushInterval,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "foodtrack",
		DisableStartupMessage: true,
		BodyLimit:             defaultBodyLimit,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          s.handleFiberError,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(s.observe)

	api := s.app.Group("/api/orders")
	// Публичный трекинг регистрируется раньше /:id.
	api.Get("/tracking/:orderId", s.trackPublic)
	api.Get("/", s.authenticate, s.listOrders)
	api.Post("/", s.authenticate, s.placeOrder)
	api.Get("/:id", s.authenticate, s.getOrder)
	api.Put("/:id/status", s.authenticate, s.updateStatus)
	api.Put("/:id/location", s.authenticate, s.updateLocation)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/tracking/:orderId", websocket.New(s.trackingFeed))
}

// App возвращает fiber-приложение (для тестов и встраивания).
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub возвращает hub уведомлений живого трекинга.
func (s *Server) Hub() *tracking.Hub {
	return s.hub
}

// Listen блокируется до остановки сервера.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// observe пишет метрики и лог запроса.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := s.handleFiberError(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	elapsed := time.Since(start)
	s.httpMetrics.Observe(route, c.Method(), status, elapsed)

	entry := s.logger.WithFields(log.Fields{
		"method":      c.Method(),
		"route":       route,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Warn("http request")
	} else {
		entry.Debug("http request")
	}
	return nil
}

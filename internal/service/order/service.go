// Package order оформляет заказы, ведёт их по статусам и принимает координаты водителя.
package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/config"
	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/eta"
	"github.com/vladislavdragonenkov/foodtrack/internal/lock"
	"github.com/vladislavdragonenkov/foodtrack/internal/metrics"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
)

const (
	defaultOpTimeout   = 5 * time.Second
	defaultListLimit   = 50
	maxListLimit       = 100
	maxSaveAttempts    = 3
	orderIDPrefix      = "ORD"
	aggregateTypeOrder = "order"
)

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Logger      *log.Entry
	Metrics     *metrics.TrackingMetrics
	Locker      domain.Locker
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Clock       func() time.Time
	OrderIDFunc func(now time.Time) string
	OpTimeout   time.Duration
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics задаёт бизнес-метрики.
func WithMetrics(m *metrics.TrackingMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithLocker задаёт блокировку заказов; по умолчанию in-process.
func WithLocker(locker domain.Locker) Option {
	return func(o *Options) { o.Locker = locker }
}

// WithOutbox включает запись доменных событий в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Options) { o.Outbox = outbox }
}

// WithTimeline включает запись таймлайна заказа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(o *Options) { o.Timeline = timeline }
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// WithOrderIDFunc подменяет генератор публичных номеров заказа.
func WithOrderIDFunc(fn func(now time.Time) string) Option {
	return func(o *Options) { o.OrderIDFunc = fn }
}

// WithOpTimeout ограничивает каждое обращение к хранилищу и каталогу.
func WithOpTimeout(d time.Duration) Option {
	return func(o *Options) { o.OpTimeout = d }
}

// Service реализует сценарии жизненного цикла заказа.
type Service struct {
	orders    domain.OrderRepository
	catalog   domain.Catalog
	locker    domain.Locker
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	estimator *eta.Estimator
	projector *tracking.Projector
	business  config.Business
	phoneRe   *regexp.Regexp
	idRe      *regexp.Regexp
	metrics   *metrics.TrackingMetrics
	logger    *log.Entry
	now       func() time.Time
	orderID   func(now time.Time) string
	opTimeout time.Duration
}

// New собирает сервис. Бизнес-конфигурация проверяется повторно.
func New(orders domain.OrderRepository, catalog domain.Catalog, business config.Business, options ...Option) (*Service, error) {
	if orders == nil || catalog == nil {
		return nil, fmt.Errorf("order service: repository and catalog are required")
	}
	if err := business.Validate(); err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	estimator, err := eta.New(business.ETA)
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewKeyed()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	orderID := opts.OrderIDFunc
	if orderID == nil {
		orderID = newOrderIDGenerator()
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}

	return &Service{
		orders:    orders,
		catalog:   catalog,
		locker:    locker,
		outbox:    opts.Outbox,
		timeline:  opts.Timeline,
		estimator: estimator,
		projector: tracking.NewProjector(estimator, business.Tracking.MaxPathSamples),
		business:  business,
		phoneRe:   regexp.MustCompile(business.PhonePattern),
		idRe:      regexp.MustCompile(business.RestaurantIDPattern),
		metrics:   opts.Metrics,
		logger:    logger,
		now:       clock,
		orderID:   orderID,
		opTimeout: opts.OpTimeout,
	}, nil
}

// Estimator возвращает калькулятор ETA сервиса.
func (s *Service) Estimator() *eta.Estimator {
	return s.estimator
}

// Business возвращает действующую бизнес-конфигурацию.
func (s *Service) Business() config.Business {
	return s.business
}

// newOrderIDGenerator выдаёт "ORD" + монотонный ULID; уникален при конкурентном оформлении.
func newOrderIDGenerator() func(now time.Time) string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func(now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		return orderIDPrefix + ulid.MustNew(ulid.Timestamp(now), entropy).String()
	}
}

func newID() string {
	return uuid.NewString()
}

func isInternalID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

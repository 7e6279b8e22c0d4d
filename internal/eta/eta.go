// Package eta оценивает время доставки с учётом расстояния и часов пик.
package eta

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/geo"
)

// Window — интервал часов пик [Start, End) по местному времени.
type Window [2]int

// Config задаёт константы оценки.
type Config struct {
	BaseDeliveryMinutes float64  `yaml:"base_delivery_minutes"`
	PrepMinutes         float64  `yaml:"prep_minutes"`
	MinutesPerKm        float64  `yaml:"minutes_per_km"`
	PeakMultiplier      float64  `yaml:"peak_multiplier"`
	MaxEtaMinutes       float64  `yaml:"max_eta_minutes"`
	PeakWindows         []Window `yaml:"peak_windows"`
	Timezone            string   `yaml:"timezone"`
}

// DefaultConfig возвращает значения для Вадодары.
func DefaultConfig() Config {
	return Config{
		BaseDeliveryMinutes: 30,
		PrepMinutes:         15,
		MinutesPerKm:        2,
		PeakMultiplier:      1.5,
		MaxEtaMinutes:       90,
		PeakWindows:         []Window{{12, 15}, {19, 22}},
		Timezone:            "Asia/Kolkata",
	}
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	var errs []error
	if c.BaseDeliveryMinutes < 0 || c.PrepMinutes < 0 || c.MinutesPerKm < 0 {
		errs = append(errs, errors.New("eta minutes must be non-negative"))
	}
	if c.PeakMultiplier < 1 {
		errs = append(errs, errors.New("peak_multiplier must be >= 1"))
	}
	if c.MaxEtaMinutes <= 0 {
		errs = append(errs, errors.New("max_eta_minutes must be positive"))
	}
	for _, w := range c.PeakWindows {
		if w[0] < 0 || w[1] > 24 || w[0] >= w[1] {
			errs = append(errs, fmt.Errorf("invalid peak window %v", w))
		}
	}
	return errors.Join(errs...)
}

// istZone используется, если в системе нет базы часовых поясов.
var istZone = time.FixedZone("IST", 5*3600+30*60)

// Estimator считает ETA. Безопасен для конкурентного использования.
type Estimator struct {
	cfg Config
	loc *time.Location
}

var _ domain.ETAEstimator = (*Estimator)(nil)

// New создаёт Estimator.
func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc := istZone
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}
	return &Estimator{cfg: cfg, loc: loc}, nil
}

// Config возвращает действующие константы.
func (e *Estimator) Config() Config {
	return e.cfg
}

// IsPeakHour сообщает, попадает ли момент в одно из окон пик по местному времени.
func (e *Estimator) IsPeakHour(now time.Time) bool {
	h := now.In(e.loc).Hour()
	for _, w := range e.cfg.PeakWindows {
		if h >= w[0] && h < w[1] {
			return true
		}
	}
	return false
}

// TrafficMultiplier возвращает коэффициент трафика для момента времени.
func (e *Estimator) TrafficMultiplier(now time.Time) float64 {
	if e.IsPeakHour(now) {
		return e.cfg.PeakMultiplier
	}
	return 1
}

// Estimate: база + готовка + ceil(км) * мин/км * коэффициент, не больше потолка.
// Без одной из точек считается только база + готовка.
func (e *Estimator) Estimate(restaurant, delivery *domain.Coordinates, now time.Time) time.Duration {
	minutes := e.cfg.BaseDeliveryMinutes + e.cfg.PrepMinutes
	if restaurant != nil && delivery != nil {
		km := math.Ceil(geo.Distance(*restaurant, *delivery))
		minutes += km * e.cfg.MinutesPerKm * e.TrafficMultiplier(now)
	}
	return e.capped(minutes)
}

// Remaining оценивает оставшееся время в пути для живого трекинга.
func (e *Estimator) Remaining(distanceKm float64, now time.Time) time.Duration {
	if distanceKm <= 0 {
		return 0
	}
	minutes := math.Ceil(distanceKm * e.cfg.MinutesPerKm * e.TrafficMultiplier(now))
	return e.capped(minutes)
}

func (e *Estimator) capped(minutes float64) time.Duration {
	if minutes > e.cfg.MaxEtaMinutes {
		minutes = e.cfg.MaxEtaMinutes
	}
	return time.Duration(minutes * float64(time.Minute))
}

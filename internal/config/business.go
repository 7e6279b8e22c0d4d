// Package config загружает бизнес-параметры города: зону доставки, ETA, тарифы.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/eta"
	"github.com/vladislavdragonenkov/foodtrack/internal/geo"
)

//go:embed vadodara.yaml
var defaultBusiness []byte

// LatLon — координаты в YAML.
type LatLon struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Coordinates конвертирует в доменный тип.
func (l LatLon) Coordinates() domain.Coordinates {
	return domain.Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Pricing — тарифы доставки и налога.
type Pricing struct {
	DeliveryFee           decimal.Decimal `yaml:"delivery_fee"`
	FreeDeliveryThreshold decimal.Decimal `yaml:"free_delivery_threshold"`
	TaxRate               decimal.Decimal `yaml:"tax_rate"`
}

// Tracking — параметры живого трекинга.
type Tracking struct {
	MaxPathSamples       int           `yaml:"max_path_samples"`
	PushInterval         time.Duration `yaml:"push_interval"`
	DefaultDriverRating  float64       `yaml:"default_driver_rating"`
	DefaultDriverAddress string        `yaml:"default_driver_address"`
}

// Business описывает бизнес-конфигурацию обслуживаемого города.
type Business struct {
	City                      string     `yaml:"city"`
	State                     string     `yaml:"state"`
	ServiceArea               geo.Bounds `yaml:"service_area"`
	DefaultRestaurantLocation LatLon     `yaml:"default_restaurant_location"`
	PhonePattern              string     `yaml:"phone_pattern"`
	RestaurantIDPattern       string     `yaml:"restaurant_id_pattern"`
	ETA                       eta.Config `yaml:"eta"`
	Pricing                   Pricing    `yaml:"pricing"`
	Tracking                  Tracking   `yaml:"tracking"`
}

// Default возвращает встроенную конфигурацию Вадодары.
func Default() Business {
	b, err := Parse(defaultBusiness)
	if err != nil {
		panic(fmt.Sprintf("embedded business config is invalid: %v", err))
	}
	return b
}

// Load читает конфигурацию из файла; пустой путь означает встроенную.
func Load(path string) (Business, error) {
	if path == "" {
		return Parse(defaultBusiness)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Business{}, fmt.Errorf("read business config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML и проверяет значения.
func Parse(data []byte) (Business, error) {
	var b Business
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Business{}, fmt.Errorf("parse business config: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Business{}, err
	}
	return b, nil
}

// Validate проверяет согласованность параметров.
func (b Business) Validate() error {
	var errs []error
	if b.City == "" {
		errs = append(errs, errors.New("city is required"))
	}
	if !b.ServiceArea.Valid() {
		errs = append(errs, errors.New("service_area bounds are inconsistent"))
	}
	if _, err := regexp.Compile(b.PhonePattern); err != nil || b.PhonePattern == "" {
		errs = append(errs, fmt.Errorf("phone_pattern is invalid: %v", err))
	}
	if _, err := regexp.Compile(b.RestaurantIDPattern); err != nil || b.RestaurantIDPattern == "" {
		errs = append(errs, fmt.Errorf("restaurant_id_pattern is invalid: %v", err))
	}
	if err := b.ETA.Validate(); err != nil {
		errs = append(errs, err)
	}
	if b.Pricing.DeliveryFee.IsNegative() || b.Pricing.FreeDeliveryThreshold.IsNegative() || b.Pricing.TaxRate.IsNegative() {
		errs = append(errs, errors.New("pricing values must be non-negative"))
	}
	if b.Tracking.PushInterval <= 0 {
		errs = append(errs, errors.New("tracking.push_interval must be positive"))
	}
	return errors.Join(errs...)
}

// Package catalog — статический справочник ресторанов и меню.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

//go:embed vadodara.yaml
var defaultSeed []byte

type seedFile struct {
	Restaurants []seedRestaurant `yaml:"restaurants"`
}

type seedRestaurant struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Address  string        `yaml:"address"`
	Phone    string        `yaml:"phone"`
	Location *seedLocation `yaml:"location"`
	Dishes   []seedDish    `yaml:"dishes"`
}

type seedLocation struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type seedDish struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Category  string          `yaml:"category"`
	Price     decimal.Decimal `yaml:"price"`
	Available *bool           `yaml:"available"`
}

// Static хранит неизменяемый каталог в памяти. Безопасен для конкурентного чтения.
type Static struct {
	restaurants map[string]domain.Restaurant
	dishes      map[string]domain.Dish
}

var _ domain.Catalog = (*Static)(nil)

// Default загружает встроенный каталог Вадодары.
func Default() *Static {
	c, err := Parse(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load читает каталог из файла; пустой путь означает встроенный.
func Load(path string) (*Static, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse строит каталог из YAML.
func Parse(data []byte) (*Static, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Static{
		restaurants: make(map[string]domain.Restaurant, len(seed.Restaurants)),
		dishes:      make(map[string]domain.Dish),
	}
	for _, r := range seed.Restaurants {
		if r.ID == "" {
			return nil, errors.New("catalog: restaurant without id")
		}
		if _, dup := c.restaurants[r.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate restaurant %q", r.ID)
		}
		rest := domain.Restaurant{ID: r.ID, Name: r.Name, Address: r.Address, Phone: r.Phone}
		if r.Location != nil {
			rest.Location = &domain.Coordinates{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude}
		}
		c.restaurants[r.ID] = rest

		for _, d := range r.Dishes {
			if d.ID == "" {
				return nil, fmt.Errorf("catalog: dish without id in %q", r.ID)
			}
			if _, dup := c.dishes[d.ID]; dup {
				return nil, fmt.Errorf("catalog: duplicate dish %q", d.ID)
			}
			if d.Price.IsNegative() {
				return nil, fmt.Errorf("catalog: dish %q has negative price", d.ID)
			}
			available := d.Available == nil || *d.Available
			c.dishes[d.ID] = domain.Dish{
				ID:           d.ID,
				RestaurantID: r.ID,
				Name:         d.Name,
				Category:     d.Category,
				Price:        d.Price,
				Available:    available,
			}
		}
	}
	return c, nil
}

// FindRestaurant возвращает ресторан по ID.
func (c *Static) FindRestaurant(ctx context.Context, id string) (domain.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Restaurant{}, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	r, ok := c.restaurants[id]
	if !ok {
		return domain.Restaurant{}, fmt.Errorf("%w: %s", domain.ErrRestaurantNotFound, id)
	}
	return r, nil
}

// FindDish возвращает блюдо по ID.
func (c *Static) FindDish(ctx context.Context, id string) (domain.Dish, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dish{}, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	d, ok := c.dishes[id]
	if !ok {
		return domain.Dish{}, fmt.Errorf("%w: %s", domain.ErrDishNotFound, id)
	}
	return d, nil
}

// Len возвращает число ресторанов и блюд.
func (c *Static) Len() (restaurants, dishes int) {
	return len(c.restaurants), len(c.dishes)
}

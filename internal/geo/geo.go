// Package geo содержит геометрию зоны доставки: расстояние по сфере и проверку границ города.
package geo

import (
	"math"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// EarthRadiusKm — средний радиус Земли.
const EarthRadiusKm = 6371.0

// DistanceKm считает расстояние по большому кругу (haversine) в километрах.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance считает то же для пары координат.
func Distance(a, b domain.Coordinates) float64 {
	return DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Bounds — прямоугольная зона обслуживания.
type Bounds struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// Contains проверяет, что точка лежит внутри зоны (границы включительно).
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// ContainsPoint то же для пары координат.
func (b Bounds) ContainsPoint(p domain.Coordinates) bool {
	return b.Contains(p.Latitude, p.Longitude)
}

// Center возвращает центр прямоугольника.
func (b Bounds) Center() domain.Coordinates {
	return domain.Coordinates{
		Latitude:  (b.North + b.South) / 2,
		Longitude: (b.East + b.West) / 2,
	}
}

// Valid проверяет, что границы заданы непротиворечиво.
func (b Bounds) Valid() bool {
	return b.North > b.South && b.East > b.West
}

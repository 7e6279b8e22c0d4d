package domain

import "time"

// Coordinates — пара широта/долгота в градусах.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// IsZero сообщает, что координаты не заданы.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// InRange проверяет допустимые диапазоны широты и долготы.
func (c Coordinates) InRange() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// LocationSample — одна точка трека водителя.
type LocationSample struct {
	Latitude  float64
	Longitude float64
	Address   string
	Timestamp time.Time
}

// Coordinates возвращает координаты точки.
func (s LocationSample) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Address — адрес доставки; неизменяем после оформления заказа.
type Address struct {
	Street      string
	City        string
	State       string
	ZipCode     string
	Coordinates Coordinates
}

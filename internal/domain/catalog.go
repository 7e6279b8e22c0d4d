package domain

import "github.com/shopspring/decimal"

// Restaurant — запись каталога ресторанов.
type Restaurant struct {
	ID      string
	Name    string
	Address string
	Phone   string
	// Location может отсутствовать; тогда используется локация по умолчанию.
	Location *Coordinates
}

// Dish — блюдо из меню ресторана.
type Dish struct {
	ID           string
	RestaurantID string
	Name         string
	Category     string
	Price        decimal.Decimal
	Available    bool
}

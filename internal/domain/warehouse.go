package domain

import "time"

// Coords — географические координаты точки (широта/долгота в градусах).
type Coords struct {
	Lat float64
	Lng float64
}

// Valid проверяет, что координаты лежат в допустимых диапазонах.
func (c Coords) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Warehouse описывает склад отгрузки.
type Warehouse struct {
	ID        string
	Name      string
	City      string
	Coords    Coords
	CreatedAt time.Time
}

// Validate проверяет базовые инварианты склада.
func (w *Warehouse) Validate() []error {
	var errs []error
	if w.Name == "" {
		errs = append(errs, ErrWarehouseNameRequired)
	}
	if !w.Coords.Valid() {
		errs = append(errs, ErrCoordsInvalid)
	}
	return errs
}

// NearestWarehouse — склад в выдаче поиска ближайших, с остатком по товару
// и расстоянием до точки доставки (в километрах).
type NearestWarehouse struct {
	Warehouse Warehouse
	Stock     int64
	Distance  float64
}

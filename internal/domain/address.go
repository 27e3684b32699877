package domain

import "time"

// Address — адрес доставки клиента из CRM-справочника.
type Address struct {
	ID                 string
	ExternalCustomerID string
	Coords             Coords
	Meta               map[string]any
	CreatedAt          time.Time
}

// Validate проверяет базовые инварианты адреса.
func (a *Address) Validate() []error {
	var errs []error
	if a.ExternalCustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if !a.Coords.Valid() {
		errs = append(errs, ErrCoordsInvalid)
	}
	return errs
}

package domain

import "time"

// ProductAttribute описывает одно свойство товара (цена, вес, цвет и т.п.).
// Value хранится строкой; интерпретация значения — забота потребителя.
type ProductAttribute struct {
	ID        string
	ProductID string
	Name      string
	Value     *string
	Meta      map[string]any
}

// Product агрегирует товар каталога и его свойства.
type Product struct {
	ID         string
	Name       string
	Attributes []ProductAttribute
	CreatedAt  time.Time
}

// Attribute возвращает свойство товара по имени.
func (p *Product) Attribute(name string) (ProductAttribute, bool) {
	for _, attr := range p.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return ProductAttribute{}, false
}

// Validate проверяет базовые инварианты товара.
func (p *Product) Validate() []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	return errs
}

package domain

import "math"

// priceEpsilon — допуск при сравнении денежных величин, рассчитанных в float64.
const priceEpsilon = 1e-9

// PriceBreakdown — расчёт стоимости по одной позиции заказа.
type PriceBreakdown struct {
	ProductID    string  `json:"productId"`
	Quantity     int64   `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	Price        float64 `json:"price"`
	Discount     float64 `json:"discount"`
	ShippingCost float64 `json:"shippingCost"`
}

// OrderPricing — итоговый прайсинг заказа. Сериализуется в JSON на строке
// заказа при финализации.
type OrderPricing struct {
	Items             []PriceBreakdown `json:"items"`
	TotalPrice        float64          `json:"totalPrice"`
	TotalShippingCost float64          `json:"totalShippingCost"`
	TotalDiscount     float64          `json:"totalDiscount"`
	TotalCost         float64          `json:"totalCost"`
}

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) <= priceEpsilon
}

// Equal сравнивает два прайсинга с допуском на погрешность float64.
// Порядок позиций значим: стратегии обязаны считать в порядке позиций заказа.
func (p OrderPricing) Equal(other OrderPricing) bool {
	if !floatEqual(p.TotalPrice, other.TotalPrice) ||
		!floatEqual(p.TotalShippingCost, other.TotalShippingCost) ||
		!floatEqual(p.TotalDiscount, other.TotalDiscount) ||
		!floatEqual(p.TotalCost, other.TotalCost) {
		return false
	}
	if len(p.Items) != len(other.Items) {
		return false
	}
	for i := range p.Items {
		a, b := p.Items[i], other.Items[i]
		if a.ProductID != b.ProductID || a.Quantity != b.Quantity {
			return false
		}
		if !floatEqual(a.UnitPrice, b.UnitPrice) ||
			!floatEqual(a.Price, b.Price) ||
			!floatEqual(a.Discount, b.Discount) ||
			!floatEqual(a.ShippingCost, b.ShippingCost) {
			return false
		}
	}
	return true
}

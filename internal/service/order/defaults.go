package order

import (
	"fmt"
	"strconv"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/geo"
)

// Атрибуты товара, на которые опираются стратегии по умолчанию.
const (
	attrPrice  = "price"
	attrWeight = "weight"
)

// Тариф доставки: за километр на килограмм веса.
const shippingRatePerKmKg = 0.01

// Доля стоимости доставки в итоговой сумме, выше которой заказ отклоняется.
const maxShippingShare = 0.15

// DefaultPricing — объёмная скидка по количеству единиц в позиции.
type DefaultPricing struct{}

// Price считает цену позиции как unit_price × qty и скидку по ступеням:
// от 25 единиц — 5%, от 50 — 10%, от 100 — 15%, от 250 — 20%.
func (DefaultPricing) Price(items []domain.OrderItem, products map[string]domain.Product) ([]domain.PriceBreakdown, error) {
	breakdown := make([]domain.PriceBreakdown, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, domain.ErrProductNotFound
		}
		unitPrice, err := productAttrFloat(product, attrPrice)
		if err != nil {
			return nil, err
		}

		price := geo.Round2(unitPrice * float64(item.Quantity))
		discount := geo.Round2(price * discountRate(item.Quantity))
		breakdown = append(breakdown, domain.PriceBreakdown{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Price:     price,
			Discount:  discount,
		})
	}
	return breakdown, nil
}

func discountRate(qty int64) float64 {
	switch {
	case qty >= 250:
		return 0.20
	case qty >= 100:
		return 0.15
	case qty >= 50:
		return 0.10
	case qty >= 25:
		return 0.05
	default:
		return 0
	}
}

// DefaultShipping набирает резервы с ближайших складов и тарифицирует их по
// расстоянию и весу: каждая строка резервирования добавляет
// distance × 0.01 × weight × qty к доставке своей позиции.
type DefaultShipping struct{}

func (DefaultShipping) Shipping(planner AllocationPlanner, items []domain.OrderItem, dest domain.Coords, breakdown []domain.PriceBreakdown, products map[string]domain.Product) ([]domain.AllocationProposal, error) {
	allocations := make([]domain.AllocationProposal, 0, len(items))
	for _, item := range items {
		plan, err := planner.PlanAllocation(item.ProductID, dest, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("plan allocation for %s: %w", item.ProductID, err)
		}
		allocations = append(allocations, plan...)
	}

	costs := make(map[string]float64, len(breakdown))
	for _, allocation := range allocations {
		product, ok := products[allocation.ProductID]
		if !ok {
			return nil, domain.ErrProductNotFound
		}
		weight, err := productAttrFloat(product, attrWeight)
		if err != nil {
			return nil, err
		}
		costs[allocation.ProductID] += allocation.Distance * shippingRatePerKmKg * weight * float64(allocation.Quantity)
	}
	for i := range breakdown {
		breakdown[i].ShippingCost = geo.Round2(costs[breakdown[i].ProductID])
	}
	return allocations, nil
}

// DefaultValidation отклоняет заказы, в которых доставка съедает слишком
// большую долю итоговой суммы.
type DefaultValidation struct{}

func (DefaultValidation) Validate(proposal domain.OrderProposal) error {
	pricing := proposal.Pricing
	if pricing.TotalCost <= 0 {
		return fmt.Errorf("%w: non-positive total cost", domain.ErrProposalInvalid)
	}
	if pricing.TotalShippingCost > pricing.TotalCost*maxShippingShare {
		return fmt.Errorf("%w: shipping cost %.2f exceeds %d%% of total %.2f",
			domain.ErrProposalInvalid, pricing.TotalShippingCost, int(maxShippingShare*100), pricing.TotalCost)
	}
	return nil
}

func productAttrFloat(product domain.Product, name string) (float64, error) {
	attr, ok := product.Attribute(name)
	if !ok || attr.Value == nil {
		return 0, fmt.Errorf("product %s has no %q attribute", product.ID, name)
	}
	value, err := strconv.ParseFloat(*attr.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("product %s attribute %q is not a number: %w", product.ID, name, err)
	}
	return value, nil
}

var (
	_ PricingStrategy    = DefaultPricing{}
	_ ShippingStrategy   = DefaultShipping{}
	_ ValidationStrategy = DefaultValidation{}
)

package order

import (
	"sync"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

// DefaultStrategyName — имя стратегии, назначаемой черновику по умолчанию.
const DefaultStrategyName = "default"

// PricingStrategy считает цену и скидку по каждой позиции заказа.
type PricingStrategy interface {
	Price(items []domain.OrderItem, products map[string]domain.Product) ([]domain.PriceBreakdown, error)
}

// ShippingStrategy строит план резервирования под позиции заказа и заполняет
// стоимость доставки в разбивке цен. Стратегия сама решает, как обращаться к
// планировщику: с каких складов брать и как тарифицировать расстояния.
type ShippingStrategy interface {
	Shipping(planner AllocationPlanner, items []domain.OrderItem, dest domain.Coords, breakdown []domain.PriceBreakdown, products map[string]domain.Product) ([]domain.AllocationProposal, error)
}

// ValidationStrategy — финальная бизнес-проверка предложения перед фиксацией.
type ValidationStrategy interface {
	Validate(proposal domain.OrderProposal) error
}

// Registry хранит именованные стратегии. Каждый экземпляр сервиса заказов
// получает собственный реестр, глобального состояния нет.
type Registry struct {
	mu         sync.RWMutex
	pricing    map[string]PricingStrategy
	shipping   map[string]ShippingStrategy
	validation map[string]ValidationStrategy
}

// NewRegistry создаёт реестр со стратегиями по умолчанию.
func NewRegistry() *Registry {
	r := &Registry{
		pricing:    make(map[string]PricingStrategy),
		shipping:   make(map[string]ShippingStrategy),
		validation: make(map[string]ValidationStrategy),
	}
	r.RegisterPricing(DefaultStrategyName, DefaultPricing{})
	r.RegisterShipping(DefaultStrategyName, DefaultShipping{})
	r.RegisterValidation(DefaultStrategyName, DefaultValidation{})
	return r
}

// RegisterPricing регистрирует стратегию ценообразования под именем.
func (r *Registry) RegisterPricing(name string, strategy PricingStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pricing[name] = strategy
}

// RegisterShipping регистрирует стратегию доставки под именем.
func (r *Registry) RegisterShipping(name string, strategy ShippingStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipping[name] = strategy
}

// RegisterValidation регистрирует стратегию проверки под именем.
func (r *Registry) RegisterValidation(name string, strategy ValidationStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validation[name] = strategy
}

// Pricing возвращает стратегию ценообразования или ErrStrategyNotFound.
func (r *Registry) Pricing(name string) (PricingStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.pricing[name]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	return strategy, nil
}

// Shipping возвращает стратегию доставки или ErrStrategyNotFound.
func (r *Registry) Shipping(name string) (ShippingStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.shipping[name]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	return strategy, nil
}

// Validation возвращает стратегию проверки или ErrStrategyNotFound.
func (r *Registry) Validation(name string) (ValidationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.validation[name]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	return strategy, nil
}

package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

// OrderRepository — in-memory хранилище заказов. Для Finalize опирается на
// in-memory репозитории остатков и событий, имитируя односвязную транзакцию
// постгресовой реализации.
type OrderRepository struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	inventory *InventoryRepository
	events    *EventRepository
}

// NewOrderRepository создаёт in-memory реализацию OrderRepository.
func NewOrderRepository(inventory *InventoryRepository, events *EventRepository) *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]domain.Order),
		inventory: inventory,
		events:    events,
	}
}

func (r *OrderRepository) CreateDraft(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusDraft
	}
	if order.CreatedOn.IsZero() {
		order.CreatedOn = time.Now().UTC()
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) UpdateDraft(orderID string, patch domain.DraftPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusDraft {
		return domain.ErrOrderNotDraft
	}

	if patch.AddressID != nil {
		order.AddressID = *patch.AddressID
	}
	if patch.AgentID != nil {
		order.AgentID = *patch.AgentID
	}
	if patch.PricingStrategy != nil {
		order.PricingStrategy = *patch.PricingStrategy
	}
	if patch.ShippingStrategy != nil {
		order.ShippingStrategy = *patch.ShippingStrategy
	}
	if patch.ValidationStrategy != nil {
		order.ValidationStrategy = *patch.ValidationStrategy
	}
	if patch.Items != nil {
		order.Items = append([]domain.OrderItem(nil), patch.Items...)
	}
	r.orders[orderID] = order
	return nil
}

func (r *OrderRepository) Get(id string) (domain.Order, error) {
	r.mu.Lock()
	order, ok := r.orders[id]
	r.mu.Unlock()
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order = cloneOrder(order)
	allocations, err := r.inventory.ListAllocations(id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Allocations = allocations
	return order, nil
}

func (r *OrderRepository) ListByCustomer(externalCustomerID string) ([]domain.Order, error) {
	return r.listBy(func(o domain.Order) bool { return o.ExternalCustomerID == externalCustomerID })
}

func (r *OrderRepository) ListByAddress(addressID string) ([]domain.Order, error) {
	return r.listBy(func(o domain.Order) bool { return o.AddressID == addressID })
}

func (r *OrderRepository) ListByAgent(agentID string) ([]domain.Order, error) {
	return r.listBy(func(o domain.Order) bool { return o.AgentID == agentID })
}

func (r *OrderRepository) UpdateStatus(orderID string, from []domain.OrderStatus, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for _, status := range from {
		if order.Status == status {
			order.Status = to
			r.orders[orderID] = order
			return nil
		}
	}
	return domain.ErrOrderState
}

// Finalize переводит черновик в PROCESSING, сохраняет прайсинг, создаёт
// PENDING-строки резервирования и событие конвейера.
func (r *OrderRepository) Finalize(orderID string, pricing domain.OrderPricing, allocations []domain.Allocation, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusDraft {
		return domain.ErrOrderState
	}

	if err := r.inventory.CreateAllocations(allocations); err != nil {
		return err
	}
	if err := r.events.Insert(event); err != nil {
		return err
	}

	order.Status = domain.OrderStatusProcessing
	pricingCopy := pricing
	pricingCopy.Items = append([]domain.PriceBreakdown(nil), pricing.Items...)
	order.Pricing = &pricingCopy
	r.orders[orderID] = order
	return nil
}

func (r *OrderRepository) listBy(match func(domain.Order) bool) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Order, 0)
	for _, o := range r.orders {
		if match(o) {
			result = append(result, cloneOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedOn.Equal(result[j].CreatedOn) {
			return result[i].CreatedOn.Before(result[j].CreatedOn)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	o.Allocations = append([]domain.Allocation(nil), o.Allocations...)
	if o.Pricing != nil {
		pricing := *o.Pricing
		pricing.Items = append([]domain.PriceBreakdown(nil), o.Pricing.Items...)
		o.Pricing = &pricing
	}
	return o
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

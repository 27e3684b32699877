package order

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

// AllocationPlanner строит и проверяет планы резервирования под позиции заказа.
type AllocationPlanner interface {
	PlanAllocation(productID string, dest domain.Coords, qty int64) ([]domain.AllocationProposal, error)
	IsAllocationValid(proposals []domain.AllocationProposal) error
}

// Service реализует жизненный цикл заказа: черновик, предложение, финализация
// и статусные переходы.
type Service struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	addresses domain.AddressRepository
	planner   AllocationPlanner
	timeline  domain.TimelineRepository
	registry  *Registry
	logger    *log.Entry
}

// NewService создаёт сервис заказов с реестром стратегий по умолчанию.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	addresses domain.AddressRepository,
	planner AllocationPlanner,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order")
	}
	return &Service{
		orders:    orders,
		products:  products,
		addresses: addresses,
		planner:   planner,
		timeline:  timeline,
		registry:  NewRegistry(),
		logger:    logger,
	}
}

// Strategies возвращает реестр стратегий этого экземпляра сервиса.
func (s *Service) Strategies() *Registry {
	return s.registry
}

// CreateDraftOrder сохраняет черновик заказа со стратегиями по умолчанию.
func (s *Service) CreateDraftOrder(externalCustomerID string, items []domain.OrderItem) (domain.Order, error) {
	order := domain.Order{
		ID:                 uid.New(uid.PrefixOrder),
		ExternalCustomerID: externalCustomerID,
		Items:              items,
		PricingStrategy:    DefaultStrategyName,
		ShippingStrategy:   DefaultStrategyName,
		ValidationStrategy: DefaultStrategyName,
		Status:             domain.OrderStatusDraft,
	}
	if errs := order.ValidateDraft(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}
	if err := s.orders.CreateDraft(order); err != nil {
		return domain.Order{}, err
	}
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": externalCustomerID,
	}).Info("draft order created")
	return s.orders.Get(order.ID)
}

// UpdateDraftOrder применяет частичное обновление к черновику.
func (s *Service) UpdateDraftOrder(orderID string, patch domain.DraftPatch) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if patch.Items != nil {
		// Позиции проверяются до записи теми же правилами, что и при создании.
		candidate := domain.Order{ExternalCustomerID: "candidate", Items: patch.Items}
		if errs := candidate.ValidateDraft(); len(errs) > 0 {
			return domain.Order{}, errs[0]
		}
	}
	if patch.AddressID != nil && *patch.AddressID != "" {
		if _, err := s.addresses.Get(*patch.AddressID); err != nil {
			return domain.Order{}, err
		}
	}
	if err := s.orders.UpdateDraft(orderID, patch); err != nil {
		return domain.Order{}, err
	}
	return s.orders.Get(orderID)
}

// GetOrder возвращает заказ со строками резервирования.
func (s *Service) GetOrder(id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// GetOrdersByCustomerID возвращает заказы клиента.
func (s *Service) GetOrdersByCustomerID(externalCustomerID string) ([]domain.Order, error) {
	return s.orders.ListByCustomer(externalCustomerID)
}

// GetOrdersByAddressID возвращает заказы по адресу доставки.
func (s *Service) GetOrdersByAddressID(addressID string) ([]domain.Order, error) {
	return s.orders.ListByAddress(addressID)
}

// GetOrdersByAgentID возвращает заказы, оформленные агентом.
func (s *Service) GetOrdersByAgentID(agentID string) ([]domain.Order, error) {
	return s.orders.ListByAgent(agentID)
}

// CreateOrderProposal рассчитывает резервы и прайсинг черновика, ничего не
// записывая: и расчёт, и строки резервирования создаст только финализация.
func (s *Service) CreateOrderProposal(orderID string) (domain.OrderProposal, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.OrderProposal{}, err
	}
	if order.Status != domain.OrderStatusDraft {
		return domain.OrderProposal{}, domain.ErrOrderNotDraft
	}
	if errs := order.ValidateDraft(); len(errs) > 0 {
		return domain.OrderProposal{}, errs[0]
	}
	if order.AddressID == "" {
		return domain.OrderProposal{}, domain.ErrAddressNotFound
	}

	address, err := s.addresses.Get(order.AddressID)
	if err != nil {
		return domain.OrderProposal{}, err
	}
	products, err := s.loadProducts(order.Items)
	if err != nil {
		return domain.OrderProposal{}, err
	}

	pricingStrategy, err := s.registry.Pricing(order.PricingStrategy)
	if err != nil {
		return domain.OrderProposal{}, err
	}
	shippingStrategy, err := s.registry.Shipping(order.ShippingStrategy)
	if err != nil {
		return domain.OrderProposal{}, err
	}

	breakdown, err := pricingStrategy.Price(order.Items, products)
	if err != nil {
		return domain.OrderProposal{}, err
	}

	// План резервирования и доставка — целиком ответственность стратегии.
	allocations, err := shippingStrategy.Shipping(s.planner, order.Items, address.Coords, breakdown, products)
	if err != nil {
		return domain.OrderProposal{}, err
	}

	pricing := domain.OrderPricing{Items: breakdown}
	for _, line := range breakdown {
		pricing.TotalPrice += line.Price
		pricing.TotalDiscount += line.Discount
		pricing.TotalShippingCost += line.ShippingCost
	}
	pricing.TotalCost = pricing.TotalPrice - pricing.TotalDiscount + pricing.TotalShippingCost

	return domain.OrderProposal{
		Order:       order,
		Allocations: allocations,
		Pricing:     pricing,
	}, nil
}

// ValidateOrderProposal прогоняет предложение через четыре проверки: структура,
// воспроизводимость прайсинга, исполнимость резервов и бизнес-стратегия заказа.
// Проверки дешевле выполняются первыми и обрываются на первой ошибке.
func (s *Service) ValidateOrderProposal(proposal domain.OrderProposal) error {
	if err := s.validateStructure(proposal); err != nil {
		return err
	}

	fresh, err := s.CreateOrderProposal(proposal.Order.ID)
	if err != nil {
		return err
	}
	if !fresh.Pricing.Equal(proposal.Pricing) {
		return fmt.Errorf("%w: pricing is stale", domain.ErrProposalInvalid)
	}

	if err := s.planner.IsAllocationValid(proposal.Allocations); err != nil {
		return err
	}

	validationStrategy, err := s.registry.Validation(proposal.Order.ValidationStrategy)
	if err != nil {
		return err
	}
	return validationStrategy.Validate(proposal)
}

// FinalizeOrder фиксирует одобренное клиентом предложение: проверяет его
// против свежего расчёта и одной транзакцией переводит заказ в PROCESSING,
// создаёт PENDING-резервы и событие конвейера. Устаревшее предложение
// отклоняется, клиент запрашивает расчёт заново.
func (s *Service) FinalizeOrder(orderID string, proposal domain.OrderProposal) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if proposal.Order.ID != orderID {
		return domain.Order{}, fmt.Errorf("%w: proposal is for order %s", domain.ErrProposalInvalid, proposal.Order.ID)
	}
	if err := s.ValidateOrderProposal(proposal); err != nil {
		return domain.Order{}, err
	}

	allocations := make([]domain.Allocation, 0, len(proposal.Allocations))
	for _, p := range proposal.Allocations {
		allocations = append(allocations, domain.Allocation{
			ID:          uid.New(uid.PrefixAllocation),
			OrderID:     orderID,
			WarehouseID: p.WarehouseID,
			ProductID:   p.ProductID,
			Quantity:    p.Quantity,
			Distance:    p.Distance,
			Status:      domain.AllocationStatusPending,
		})
	}
	event := domain.Event{
		ID:      uid.New(uid.PrefixEvent),
		Type:    domain.EventOrderProcessing,
		Payload: domain.OrderEventPayload{OrderID: orderID}.Encode(),
		Status:  domain.EventStatusPending,
	}

	if err := s.orders.Finalize(orderID, proposal.Pricing, allocations, event); err != nil {
		return domain.Order{}, err
	}
	s.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"total_cost": proposal.Pricing.TotalCost,
	}).Info("order finalized")
	s.appendTimeline(orderID, "OrderFinalized", "")

	return s.orders.Get(orderID)
}

// SetOrderStatus выполняет статусный переход, допустимый из текущего состояния.
func (s *Service) SetOrderStatus(orderID string, status domain.OrderStatus) error {
	from, ok := domain.StatusPredecessors(status)
	if !ok {
		return domain.ErrOrderState
	}
	if err := s.orders.UpdateStatus(orderID, from, status); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order status changed")
	s.appendTimeline(orderID, "OrderStatusChanged", string(status))
	return nil
}

func (s *Service) loadProducts(items []domain.OrderItem) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(items))
	for _, item := range items {
		product, err := s.products.Get(item.ProductID)
		if err != nil {
			return nil, err
		}
		products[item.ProductID] = product
	}
	return products, nil
}

func (s *Service) validateStructure(proposal domain.OrderProposal) error {
	if proposal.Order.ID == "" {
		return domain.ErrOrderIDRequired
	}
	if len(proposal.Allocations) == 0 {
		return fmt.Errorf("%w: no allocations", domain.ErrProposalInvalid)
	}
	if len(proposal.Pricing.Items) != len(proposal.Order.Items) {
		return fmt.Errorf("%w: pricing does not cover all items", domain.ErrProposalInvalid)
	}

	// Каждая позиция должна быть закрыта резервами ровно на свой объём.
	allocated := make(map[string]int64, len(proposal.Order.Items))
	for _, allocation := range proposal.Allocations {
		if allocation.Quantity <= 0 {
			return fmt.Errorf("%w: non-positive allocation", domain.ErrProposalInvalid)
		}
		allocated[allocation.ProductID] += allocation.Quantity
	}
	for _, item := range proposal.Order.Items {
		if allocated[item.ProductID] != item.Quantity {
			return fmt.Errorf("%w: product %s allocated %d of %d",
				domain.ErrProposalInvalid, item.ProductID, allocated[item.ProductID], item.Quantity)
		}
	}
	return nil
}

func (s *Service) appendTimeline(orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
	}
}

var _ domain.OrderStatusController = (*Service)(nil)

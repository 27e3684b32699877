package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusDraft — черновик: позиции и стратегии можно менять.
	OrderStatusDraft OrderStatus = "DRAFT"
	// OrderStatusProcessing — заказ финализирован, резервы создаются/подтверждаются.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusConfirmed — резервы подтверждены, заказ готов к исполнению.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusFulfilled — заказ отгружен.
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// statusPredecessors задаёт допустимых предшественников для каждого целевого
// статуса. Переход возможен только из перечисленных состояний.
var statusPredecessors = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusDraft},
	OrderStatusConfirmed:  {OrderStatusProcessing},
	OrderStatusFulfilled:  {OrderStatusConfirmed},
	OrderStatusCancelled:  {OrderStatusProcessing, OrderStatusConfirmed},
}

// StatusPredecessors возвращает допустимых предшественников целевого статуса.
// Второе значение false означает, что в target переходить нельзя вовсе.
func StatusPredecessors(target OrderStatus) ([]OrderStatus, bool) {
	preds, ok := statusPredecessors[target]
	return preds, ok
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ProductID string
	Quantity  int64
}

// Order агрегирует заголовок заказа, позиции и (после финализации) прайсинг.
type Order struct {
	ID                 string
	ExternalCustomerID string
	AddressID          string
	AgentID            string
	Items              []OrderItem
	PricingStrategy    string
	ShippingStrategy   string
	ValidationStrategy string
	Status             OrderStatus
	// Pricing заполняется при финализации и хранится как JSON на строке заказа.
	Pricing *OrderPricing
	// Allocations подгружаются при чтении заказа; для черновика пусто.
	Allocations []Allocation
	CreatedOn   time.Time
}

// ValidateDraft проверяет инварианты черновика заказа перед сохранением.
func (o *Order) ValidateDraft() []error {
	var errs []error

	if o.ExternalCustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	seen := make(map[string]struct{}, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
			continue
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if _, ok := seen[item.ProductID]; ok {
			errs = append(errs, ErrItemDuplicateProduct)
		}
		seen[item.ProductID] = struct{}{}
	}

	return errs
}

// DraftPatch описывает частичное обновление черновика: nil-поля не трогаются,
// непустой Items целиком заменяет позиции.
type DraftPatch struct {
	AddressID          *string
	AgentID            *string
	PricingStrategy    *string
	ShippingStrategy   *string
	ValidationStrategy *string
	Items              []OrderItem
}

// OrderProposal — черновик, транзиентно аннотированный рассчитанными резервами
// и прайсингом. Не персистентен: строки резервирования создаёт финализация.
type OrderProposal struct {
	Order       Order
	Allocations []AllocationProposal
	Pricing     OrderPricing
}

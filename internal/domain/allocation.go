package domain

import "time"

// AllocationStatus отражает статус резервирования товара под заказ.
type AllocationStatus string

const (
	// AllocationStatusPending — резерв записан, остаток ещё не списан.
	AllocationStatusPending AllocationStatus = "PENDING"
	// AllocationStatusConfirmed — остаток списан, резерв подтверждён.
	AllocationStatusConfirmed AllocationStatus = "CONFIRMED"
	// AllocationStatusFulfilled — товар отгружен со склада.
	AllocationStatusFulfilled AllocationStatus = "FULFILLED"
	// AllocationStatusCancelled — резерв отменён.
	AllocationStatusCancelled AllocationStatus = "CANCELLED"
)

// InventoryRecord — остаток товара на складе.
type InventoryRecord struct {
	WarehouseID string
	ProductID   string
	Quantity    int64
}

// AllocationProposal — предложение резерва, рассчитанное стратегией доставки.
// Ещё не персистентно: строки резервирования создаёт allocate.
type AllocationProposal struct {
	WarehouseID string
	ProductID   string
	Quantity    int64
	Distance    float64
}

// Allocation описывает персистентную строку резервирования товара под заказ.
type Allocation struct {
	ID          string
	OrderID     string
	WarehouseID string
	ProductID   string
	Quantity    int64
	Distance    float64
	Status      AllocationStatus
	CreatedAt   time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля резервирования.
func (a *Allocation) Validate() []error {
	var errs []error
	if a.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if a.ProductID == "" {
		errs = append(errs, ErrItemProductRequired)
	}
	if a.Quantity <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}
	return errs
}

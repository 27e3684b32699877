package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

type stockKey struct {
	warehouseID string
	productID   string
}

// InventoryRepository — in-memory хранилище остатков и строк резервирования.
type InventoryRepository struct {
	mu          sync.Mutex
	stock       map[stockKey]int64
	allocations map[string][]domain.Allocation
}

// NewInventoryRepository создаёт in-memory реализацию InventoryRepository.
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		stock:       make(map[stockKey]int64),
		allocations: make(map[string][]domain.Allocation),
	}
}

func (r *InventoryRepository) Add(warehouseID, productID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	r.stock[stockKey{warehouseID, productID}] += qty
	return nil
}

func (r *InventoryRepository) Subtract(warehouseID, productID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	return r.subtractLocked(warehouseID, productID, qty)
}

func (r *InventoryRepository) Get(warehouseID, productID string) (domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	qty, ok := r.stock[stockKey{warehouseID, productID}]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return domain.InventoryRecord{WarehouseID: warehouseID, ProductID: productID, Quantity: qty}, nil
}

func (r *InventoryRepository) ListByWarehouse(warehouseID string) ([]domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.InventoryRecord, 0)
	for key, qty := range r.stock {
		if key.warehouseID != warehouseID {
			continue
		}
		result = append(result, domain.InventoryRecord{
			WarehouseID: key.warehouseID,
			ProductID:   key.productID,
			Quantity:    qty,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

// CheckAllocation выполняет пробное списание на копии остатков.
func (r *InventoryRepository) CheckAllocation(proposals []domain.AllocationProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scratch := make(map[stockKey]int64, len(proposals))
	for _, p := range proposals {
		key := stockKey{p.WarehouseID, p.ProductID}
		if _, ok := scratch[key]; !ok {
			scratch[key] = r.stock[key]
		}
		if scratch[key] < p.Quantity {
			return domain.ErrInsufficientStock
		}
		scratch[key] -= p.Quantity
	}
	return nil
}

func (r *InventoryRepository) CreateAllocations(allocations []domain.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createAllocationsLocked(allocations)
}

func (r *InventoryRepository) ConfirmAllocations(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.allocations[orderID]
	pendingIdx := make([]int, 0, len(rows))
	for i, a := range rows {
		if a.Status == domain.AllocationStatusPending {
			pendingIdx = append(pendingIdx, i)
		}
	}
	if len(pendingIdx) == 0 {
		return domain.ErrAllocationState
	}

	// Сначала проверяем исполнимость на копии, чтобы не оставить частичное
	// списание.
	scratch := make(map[stockKey]int64)
	for _, i := range pendingIdx {
		a := rows[i]
		key := stockKey{a.WarehouseID, a.ProductID}
		if _, ok := scratch[key]; !ok {
			scratch[key] = r.stock[key]
		}
		if scratch[key] < a.Quantity {
			return domain.ErrInsufficientStock
		}
		scratch[key] -= a.Quantity
	}

	for key, qty := range scratch {
		r.stock[key] = qty
	}
	for _, i := range pendingIdx {
		rows[i].Status = domain.AllocationStatusConfirmed
	}
	return nil
}

func (r *InventoryRepository) CancelAllocations(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.allocations[orderID]
	cancelled := 0
	for i, a := range rows {
		switch a.Status {
		case domain.AllocationStatusConfirmed:
			r.stock[stockKey{a.WarehouseID, a.ProductID}] += a.Quantity
			rows[i].Status = domain.AllocationStatusCancelled
			cancelled++
		case domain.AllocationStatusPending:
			rows[i].Status = domain.AllocationStatusCancelled
			cancelled++
		}
	}
	if cancelled == 0 {
		return domain.ErrAllocationState
	}
	return nil
}

func (r *InventoryRepository) ListAllocations(orderID string) ([]domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.allocations[orderID]
	result := make([]domain.Allocation, len(rows))
	copy(result, rows)
	return result, nil
}

func (r *InventoryRepository) subtractLocked(warehouseID, productID string, qty int64) error {
	key := stockKey{warehouseID, productID}
	current, ok := r.stock[key]
	if !ok {
		return domain.ErrInventoryNotFound
	}
	if current < qty {
		return domain.ErrInsufficientStock
	}
	r.stock[key] = current - qty
	return nil
}

func (r *InventoryRepository) createAllocationsLocked(allocations []domain.Allocation) error {
	for _, a := range allocations {
		r.allocations[a.OrderID] = append(r.allocations[a.OrderID], a)
	}
	return nil
}

// stockFor возвращает остаток без ошибки «не найдено» (для поиска ближайших).
func (r *InventoryRepository) stockFor(warehouseID, productID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[stockKey{warehouseID, productID}]
}

var _ domain.InventoryRepository = (*InventoryRepository)(nil)

package memory

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

func TestInventoryRepositoryAddSubtract(t *testing.T) {
	repo := NewInventoryRepository()

	if err := repo.Add("whs_1", "prd_1", 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.Subtract("whs_1", "prd_1", 30); err != nil {
		t.Fatalf("subtract: %v", err)
	}

	record, err := repo.Get("whs_1", "prd_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Quantity != 70 {
		t.Fatalf("expected quantity 70, got %d", record.Quantity)
	}

	if err := repo.Subtract("whs_1", "prd_1", 71); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	record, _ = repo.Get("whs_1", "prd_1")
	if record.Quantity != 70 {
		t.Fatalf("failed subtract must not change stock, got %d", record.Quantity)
	}

	if err := repo.Subtract("whs_2", "prd_1", 1); !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestInventoryRepositoryCheckAllocation(t *testing.T) {
	repo := NewInventoryRepository()
	if err := repo.Add("whs_1", "prd_1", 10); err != nil {
		t.Fatalf("add: %v", err)
	}

	ok := []domain.AllocationProposal{
		{WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 6},
		{WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 4},
	}
	if err := repo.CheckAllocation(ok); err != nil {
		t.Fatalf("check allocation: %v", err)
	}

	// Проверка не должна менять остатки.
	record, _ := repo.Get("whs_1", "prd_1")
	if record.Quantity != 10 {
		t.Fatalf("check allocation must not change stock, got %d", record.Quantity)
	}

	over := []domain.AllocationProposal{
		{WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 6},
		{WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 5},
	}
	if err := repo.CheckAllocation(over); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestInventoryRepositoryConfirmAllocations(t *testing.T) {
	repo := NewInventoryRepository()
	if err := repo.Add("whs_1", "prd_1", 100); err != nil {
		t.Fatalf("add: %v", err)
	}

	allocations := []domain.Allocation{{
		ID:          "alc_1",
		OrderID:     "ord_1",
		WarehouseID: "whs_1",
		ProductID:   "prd_1",
		Quantity:    10,
		Status:      domain.AllocationStatusPending,
	}}
	if err := repo.CreateAllocations(allocations); err != nil {
		t.Fatalf("create allocations: %v", err)
	}

	// До подтверждения остаток не тронут.
	record, _ := repo.Get("whs_1", "prd_1")
	if record.Quantity != 100 {
		t.Fatalf("pending allocation must not change stock, got %d", record.Quantity)
	}

	if err := repo.ConfirmAllocations("ord_1"); err != nil {
		t.Fatalf("confirm allocations: %v", err)
	}
	record, _ = repo.Get("whs_1", "prd_1")
	if record.Quantity != 90 {
		t.Fatalf("expected quantity 90 after confirm, got %d", record.Quantity)
	}

	rows, err := repo.ListAllocations("ord_1")
	if err != nil {
		t.Fatalf("list allocations: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != domain.AllocationStatusConfirmed {
		t.Fatalf("expected one CONFIRMED allocation, got %+v", rows)
	}

	// Повторное подтверждение невозможно.
	if err := repo.ConfirmAllocations("ord_1"); !errors.Is(err, domain.ErrAllocationState) {
		t.Fatalf("expected ErrAllocationState, got %v", err)
	}
}

func TestInventoryRepositoryConfirmInsufficientIsAtomic(t *testing.T) {
	repo := NewInventoryRepository()
	if err := repo.Add("whs_1", "prd_1", 5); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.Add("whs_1", "prd_2", 100); err != nil {
		t.Fatalf("add: %v", err)
	}

	allocations := []domain.Allocation{
		{ID: "alc_1", OrderID: "ord_1", WarehouseID: "whs_1", ProductID: "prd_2", Quantity: 10, Status: domain.AllocationStatusPending},
		{ID: "alc_2", OrderID: "ord_1", WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 6, Status: domain.AllocationStatusPending},
	}
	if err := repo.CreateAllocations(allocations); err != nil {
		t.Fatalf("create allocations: %v", err)
	}

	if err := repo.ConfirmAllocations("ord_1"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Ни одна позиция не списана, строки остались PENDING.
	record, _ := repo.Get("whs_1", "prd_2")
	if record.Quantity != 100 {
		t.Fatalf("expected stock untouched, got %d", record.Quantity)
	}
	rows, _ := repo.ListAllocations("ord_1")
	for _, row := range rows {
		if row.Status != domain.AllocationStatusPending {
			t.Fatalf("expected allocations to stay PENDING, got %+v", row)
		}
	}
}

func TestInventoryRepositoryCancelAllocations(t *testing.T) {
	repo := NewInventoryRepository()
	if err := repo.Add("whs_1", "prd_1", 100); err != nil {
		t.Fatalf("add: %v", err)
	}

	allocations := []domain.Allocation{
		{ID: "alc_1", OrderID: "ord_1", WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 10, Status: domain.AllocationStatusPending},
	}
	if err := repo.CreateAllocations(allocations); err != nil {
		t.Fatalf("create allocations: %v", err)
	}
	if err := repo.ConfirmAllocations("ord_1"); err != nil {
		t.Fatalf("confirm allocations: %v", err)
	}

	if err := repo.CancelAllocations("ord_1"); err != nil {
		t.Fatalf("cancel allocations: %v", err)
	}
	record, _ := repo.Get("whs_1", "prd_1")
	if record.Quantity != 100 {
		t.Fatalf("expected stock restored to 100, got %d", record.Quantity)
	}

	if err := repo.CancelAllocations("ord_1"); !errors.Is(err, domain.ErrAllocationState) {
		t.Fatalf("expected ErrAllocationState, got %v", err)
	}
}

func TestInventoryRepositoryCancelPendingDoesNotRestore(t *testing.T) {
	repo := NewInventoryRepository()
	if err := repo.Add("whs_1", "prd_1", 50); err != nil {
		t.Fatalf("add: %v", err)
	}

	allocations := []domain.Allocation{
		{ID: "alc_1", OrderID: "ord_1", WarehouseID: "whs_1", ProductID: "prd_1", Quantity: 10, Status: domain.AllocationStatusPending},
	}
	if err := repo.CreateAllocations(allocations); err != nil {
		t.Fatalf("create allocations: %v", err)
	}

	if err := repo.CancelAllocations("ord_1"); err != nil {
		t.Fatalf("cancel allocations: %v", err)
	}

	// PENDING-строка ничего не списывала, возвращать нечего.
	record, _ := repo.Get("whs_1", "prd_1")
	if record.Quantity != 50 {
		t.Fatalf("expected stock unchanged at 50, got %d", record.Quantity)
	}
	rows, _ := repo.ListAllocations("ord_1")
	if len(rows) != 1 || rows[0].Status != domain.AllocationStatusCancelled {
		t.Fatalf("expected CANCELLED allocation, got %+v", rows)
	}
}

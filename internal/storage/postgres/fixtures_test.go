package postgres

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

// Хелперы заполнения базы для интеграционных тестов репозиториев.

func seedProduct(t *testing.T, store *Store, name string) domain.Product {
	t.Helper()

	price := "100"
	weight := "1"
	product := domain.Product{
		ID:        uid.New(uid.PrefixProduct),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	product.Attributes = []domain.ProductAttribute{
		{ID: uid.New(uid.PrefixAttribute), ProductID: product.ID, Name: "price", Value: &price},
		{ID: uid.New(uid.PrefixAttribute), ProductID: product.ID, Name: "weight", Value: &weight},
	}

	if err := NewProductRepository(store).Create(product); err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

func seedWarehouse(t *testing.T, store *Store, name string, lat, lng float64) domain.Warehouse {
	t.Helper()

	warehouse := domain.Warehouse{
		ID:        uid.New(uid.PrefixWarehouse),
		Name:      name,
		City:      "test-city",
		Coords:    domain.Coords{Lat: lat, Lng: lng},
		CreatedAt: time.Now().UTC(),
	}
	if err := NewWarehouseRepository(store).Create(warehouse); err != nil {
		t.Fatalf("seed warehouse %s: %v", name, err)
	}
	return warehouse
}

func seedInventory(t *testing.T, store *Store, warehouseID, productID string, qty int64) {
	t.Helper()

	if err := NewInventoryRepository(store).Add(warehouseID, productID, qty); err != nil {
		t.Fatalf("seed inventory %s/%s: %v", warehouseID, productID, err)
	}
}

func seedAddress(t *testing.T, store *Store, customerID string, lat, lng float64) domain.Address {
	t.Helper()

	address := domain.Address{
		ID:                 uid.New(uid.PrefixAddress),
		ExternalCustomerID: customerID,
		Coords:             domain.Coords{Lat: lat, Lng: lng},
		CreatedAt:          time.Now().UTC(),
	}
	if err := NewAddressRepository(store).Create(address); err != nil {
		t.Fatalf("seed address for %s: %v", customerID, err)
	}
	return address
}

func seedDraftOrder(t *testing.T, store *Store, customerID, addressID string, items []domain.OrderItem) domain.Order {
	t.Helper()

	order := domain.Order{
		ID:                 uid.New(uid.PrefixOrder),
		ExternalCustomerID: customerID,
		AddressID:          addressID,
		AgentID:            "agent-1",
		Items:              items,
		PricingStrategy:    "default",
		ShippingStrategy:   "default",
		ValidationStrategy: "default",
		Status:             domain.OrderStatusDraft,
		CreatedOn:          time.Now().UTC(),
	}
	if err := NewOrderRepository(store).CreateDraft(order); err != nil {
		t.Fatalf("seed draft order: %v", err)
	}
	return order
}

func seedAllocations(t *testing.T, store *Store, orderID string, proposals []domain.AllocationProposal) []domain.Allocation {
	t.Helper()

	allocations := make([]domain.Allocation, 0, len(proposals))
	for _, p := range proposals {
		allocations = append(allocations, domain.Allocation{
			ID:          uid.New(uid.PrefixAllocation),
			OrderID:     orderID,
			WarehouseID: p.WarehouseID,
			ProductID:   p.ProductID,
			Quantity:    p.Quantity,
			Distance:    p.Distance,
			Status:      domain.AllocationStatusPending,
			CreatedAt:   time.Now().UTC(),
		})
	}
	if err := NewInventoryRepository(store).CreateAllocations(allocations); err != nil {
		t.Fatalf("seed allocations: %v", err)
	}
	return allocations
}

package order

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/service/inventory"
	"github.com/vladislavdragonenkov/scoms/internal/storage/memory"
)

type orderFixture struct {
	orders    *Service
	inventory *inventory.Service
	events    *memory.EventRepository
	product   domain.Product
	warehouse domain.Warehouse
	address   domain.Address
}

// newOrderFixture собирает сервисы на in-memory хранилищах: товар со
// стоимостью 100 и весом 1, склад со 100 единицами, адрес в пяти километрах.
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	inventoryRepo := memory.NewInventoryRepository()
	warehouseRepo := memory.NewWarehouseRepository(inventoryRepo)
	productRepo := memory.NewProductRepository()
	addressRepo := memory.NewAddressRepository()
	eventRepo := memory.NewEventRepository()
	orderRepo := memory.NewOrderRepository(inventoryRepo, eventRepo)

	inventorySvc := inventory.NewService(productRepo, warehouseRepo, inventoryRepo, nil, nil, nil)
	orderSvc := NewService(orderRepo, productRepo, addressRepo, inventorySvc, memory.NewTimelineRepository(), nil)

	price, weight := "100", "1"
	product, err := inventorySvc.CreateProduct("Monitor", []domain.ProductAttribute{
		{Name: "price", Value: &price},
		{Name: "weight", Value: &weight},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	warehouse, err := inventorySvc.CreateWarehouse("Main", "Moscow", domain.Coords{Lat: 55.80, Lng: 37.60})
	if err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	if err := inventorySvc.AddInventory(warehouse.ID, product.ID, 100); err != nil {
		t.Fatalf("add inventory: %v", err)
	}

	address := domain.Address{
		ID:                 "adr_1",
		ExternalCustomerID: "cust-1",
		Coords:             domain.Coords{Lat: 55.75, Lng: 37.61},
	}
	if err := addressRepo.Create(address); err != nil {
		t.Fatalf("create address: %v", err)
	}

	return &orderFixture{
		orders:    orderSvc,
		inventory: inventorySvc,
		events:    eventRepo,
		product:   product,
		warehouse: warehouse,
		address:   address,
	}
}

func (f *orderFixture) draft(t *testing.T, qty int64) domain.Order {
	t.Helper()
	order, err := f.orders.CreateDraftOrder("cust-1", []domain.OrderItem{{ProductID: f.product.ID, Quantity: qty}})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	addressID := f.address.ID
	order, err = f.orders.UpdateDraftOrder(order.ID, domain.DraftPatch{AddressID: &addressID})
	if err != nil {
		t.Fatalf("set address: %v", err)
	}
	return order
}

func TestCreateDraftOrderDefaults(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.orders.CreateDraftOrder("cust-1", []domain.OrderItem{{ProductID: f.product.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if order.Status != domain.OrderStatusDraft {
		t.Fatalf("expected DRAFT, got %s", order.Status)
	}
	if order.PricingStrategy != DefaultStrategyName || order.ValidationStrategy != DefaultStrategyName {
		t.Fatalf("expected default strategies, got %+v", order)
	}

	if _, err := f.orders.CreateDraftOrder("", nil); !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
	if _, err := f.orders.CreateDraftOrder("cust-1", nil); !errors.Is(err, domain.ErrItemsRequired) {
		t.Fatalf("expected ErrItemsRequired, got %v", err)
	}
}

func TestUpdateDraftOrderChecksAddress(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 2)

	missing := "adr_x"
	if _, err := f.orders.UpdateDraftOrder(order.ID, domain.DraftPatch{AddressID: &missing}); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}

	if _, err := f.orders.UpdateDraftOrder(order.ID, domain.DraftPatch{Items: []domain.OrderItem{{ProductID: f.product.ID, Quantity: 0}}}); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected ErrItemQtyInvalid, got %v", err)
	}
}

func TestCreateOrderProposal(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	if proposal.Pricing.TotalPrice != 1000 {
		t.Fatalf("expected total price 1000, got %v", proposal.Pricing.TotalPrice)
	}
	if proposal.Pricing.TotalDiscount != 0 {
		t.Fatalf("expected no discount, got %v", proposal.Pricing.TotalDiscount)
	}
	if proposal.Pricing.TotalShippingCost <= 0 {
		t.Fatalf("expected positive shipping, got %v", proposal.Pricing.TotalShippingCost)
	}
	expectedTotal := proposal.Pricing.TotalPrice - proposal.Pricing.TotalDiscount + proposal.Pricing.TotalShippingCost
	if proposal.Pricing.TotalCost != expectedTotal {
		t.Fatalf("expected total %v, got %v", expectedTotal, proposal.Pricing.TotalCost)
	}
	if len(proposal.Allocations) != 1 || proposal.Allocations[0].WarehouseID != f.warehouse.ID {
		t.Fatalf("unexpected allocations: %+v", proposal.Allocations)
	}
	if proposal.Allocations[0].Quantity != 10 {
		t.Fatalf("expected 10 units allocated, got %+v", proposal.Allocations[0])
	}

	// Расчёт воспроизводим и ничего не записывает.
	again, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal again: %v", err)
	}
	if !again.Pricing.Equal(proposal.Pricing) {
		t.Fatalf("proposal is not reproducible: %+v vs %+v", again.Pricing, proposal.Pricing)
	}
	stored, _ := f.orders.GetOrder(order.ID)
	if stored.Status != domain.OrderStatusDraft || len(stored.Allocations) != 0 {
		t.Fatalf("proposal must not persist anything: %+v", stored)
	}
}

func TestCreateOrderProposalRequiresAddress(t *testing.T) {
	f := newOrderFixture(t)
	order, err := f.orders.CreateDraftOrder("cust-1", []domain.OrderItem{{ProductID: f.product.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if _, err := f.orders.CreateOrderProposal(order.ID); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestValidateOrderProposalRejectsStale(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if err := f.orders.ValidateOrderProposal(proposal); err != nil {
		t.Fatalf("expected proposal to be valid, got %v", err)
	}

	// Изменение цены между расчётом и проверкой делает предложение устаревшим.
	newPrice := "120"
	if _, err := f.inventory.DangerouslySetAttributes(f.product.ID, []domain.ProductAttribute{
		{Name: "price", Value: &newPrice},
		{Name: "weight", Value: strPtr("1")},
	}); err != nil {
		t.Fatalf("set attributes: %v", err)
	}
	if err := f.orders.ValidateOrderProposal(proposal); !errors.Is(err, domain.ErrProposalInvalid) {
		t.Fatalf("expected ErrProposalInvalid, got %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestValidateOrderProposalStructure(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	broken := proposal
	broken.Allocations = nil
	if err := f.orders.ValidateOrderProposal(broken); !errors.Is(err, domain.ErrProposalInvalid) {
		t.Fatalf("expected ErrProposalInvalid, got %v", err)
	}

	short := proposal
	short.Allocations = []domain.AllocationProposal{{
		WarehouseID: f.warehouse.ID,
		ProductID:   f.product.ID,
		Quantity:    5,
	}}
	if err := f.orders.ValidateOrderProposal(short); !errors.Is(err, domain.ErrProposalInvalid) {
		t.Fatalf("expected ErrProposalInvalid for partial allocation, got %v", err)
	}
}

// flatShipping строит план через планировщик и ставит фиксированную доставку.
type flatShipping struct{ cost float64 }

func (f flatShipping) Shipping(planner AllocationPlanner, items []domain.OrderItem, dest domain.Coords, breakdown []domain.PriceBreakdown, _ map[string]domain.Product) ([]domain.AllocationProposal, error) {
	allocations := make([]domain.AllocationProposal, 0, len(items))
	for _, item := range items {
		plan, err := planner.PlanAllocation(item.ProductID, dest, item.Quantity)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, plan...)
	}
	for i := range breakdown {
		breakdown[i].ShippingCost = f.cost
	}
	return allocations, nil
}

func TestCreateOrderProposalUsesShippingStrategyPlan(t *testing.T) {
	f := newOrderFixture(t)
	f.orders.Strategies().RegisterShipping("flat", flatShipping{cost: 7})

	order := f.draft(t, 10)
	flat := "flat"
	if _, err := f.orders.UpdateDraftOrder(order.ID, domain.DraftPatch{ShippingStrategy: &flat}); err != nil {
		t.Fatalf("set shipping strategy: %v", err)
	}

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	// План резервирования пришёл из стратегии, доставка — её тариф.
	if len(proposal.Allocations) != 1 || proposal.Allocations[0].Quantity != 10 {
		t.Fatalf("unexpected allocations: %+v", proposal.Allocations)
	}
	if proposal.Pricing.TotalShippingCost != 7 {
		t.Fatalf("expected flat shipping 7, got %v", proposal.Pricing.TotalShippingCost)
	}
}

func TestFinalizeOrder(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	finalized, err := f.orders.FinalizeOrder(order.ID, proposal)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", finalized.Status)
	}
	if finalized.Pricing == nil || finalized.Pricing.TotalPrice != 1000 {
		t.Fatalf("expected persisted pricing, got %+v", finalized.Pricing)
	}
	if len(finalized.Allocations) != 1 || finalized.Allocations[0].Status != domain.AllocationStatusPending {
		t.Fatalf("expected one PENDING allocation, got %+v", finalized.Allocations)
	}

	// Остаток до подтверждения не списывается.
	record, err := f.inventory.GetInventory(f.warehouse.ID, f.product.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if record.Quantity != 100 {
		t.Fatalf("expected stock untouched at 100, got %d", record.Quantity)
	}

	// Финализация оставила событие конвейеру.
	event, err := f.events.ClaimNextPending([]domain.EventType{domain.EventOrderProcessing})
	if err != nil {
		t.Fatalf("claim event: %v", err)
	}
	payload, err := domain.DecodeOrderEventPayload(event.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OrderID != order.ID {
		t.Fatalf("expected order %s in payload, got %s", order.ID, payload.OrderID)
	}

	// Повторная финализация невозможна: заказ уже не черновик.
	if _, err := f.orders.FinalizeOrder(order.ID, proposal); !errors.Is(err, domain.ErrOrderNotDraft) {
		t.Fatalf("expected ErrOrderNotDraft, got %v", err)
	}
}

func TestFinalizeOrderRejectsForeignAndStaleProposal(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	// Предложение принадлежит конкретному заказу.
	if _, err := f.orders.FinalizeOrder("ord_other", proposal); !errors.Is(err, domain.ErrProposalInvalid) {
		t.Fatalf("expected ErrProposalInvalid for foreign proposal, got %v", err)
	}

	// Цена изменилась после расчёта: клиент одобрил устаревшие цифры,
	// финализация обязана их отвергнуть, а не пересчитать молча.
	newPrice := "120"
	if _, err := f.inventory.DangerouslySetAttributes(f.product.ID, []domain.ProductAttribute{
		{Name: "price", Value: &newPrice},
	}); err != nil {
		t.Fatalf("set attributes: %v", err)
	}
	if _, err := f.orders.FinalizeOrder(order.ID, proposal); !errors.Is(err, domain.ErrProposalInvalid) {
		t.Fatalf("expected ErrProposalInvalid for stale proposal, got %v", err)
	}
	stored, err := f.orders.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusDraft {
		t.Fatalf("rejected finalization must leave draft intact, got %s", stored.Status)
	}
}

func TestSetOrderStatusFollowsLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	order := f.draft(t, 10)

	// Черновик нельзя подтвердить, минуя финализацию.
	if err := f.orders.SetOrderStatus(order.ID, domain.OrderStatusConfirmed); !errors.Is(err, domain.ErrOrderState) {
		t.Fatalf("expected ErrOrderState, got %v", err)
	}

	proposal, err := f.orders.CreateOrderProposal(order.ID)
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if _, err := f.orders.FinalizeOrder(order.ID, proposal); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := f.orders.SetOrderStatus(order.ID, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.orders.SetOrderStatus(order.ID, domain.OrderStatusFulfilled); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	// Отгруженный заказ отменить нельзя.
	if err := f.orders.SetOrderStatus(order.ID, domain.OrderStatusCancelled); !errors.Is(err, domain.ErrOrderState) {
		t.Fatalf("expected ErrOrderState, got %v", err)
	}
	// В DRAFT вернуться нельзя ни из какого статуса.
	if err := f.orders.SetOrderStatus(order.ID, domain.OrderStatusDraft); !errors.Is(err, domain.ErrOrderState) {
		t.Fatalf("expected ErrOrderState, got %v", err)
	}
}

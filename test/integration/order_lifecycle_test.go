package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/service/crm"
	"github.com/vladislavdragonenkov/scoms/internal/service/events"
	"github.com/vladislavdragonenkov/scoms/internal/service/inventory"
	"github.com/vladislavdragonenkov/scoms/internal/service/orchestrator"
	"github.com/vladislavdragonenkov/scoms/internal/service/order"
	"github.com/vladislavdragonenkov/scoms/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказов: каталог,
// черновик, финализация, конвейер событий и реакции оркестратора.
type OrderLifecycleTestSuite struct {
	suite.Suite
	inventorySvc *inventory.Service
	crmSvc       *crm.Service
	orderSvc     *order.Service
	pipeline     *events.Pipeline
	timeline     domain.TimelineRepository
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	inventoryRepo := memory.NewInventoryRepository()
	eventRepo := memory.NewEventRepository()
	productRepo := memory.NewProductRepository()
	warehouseRepo := memory.NewWarehouseRepository(inventoryRepo)
	addressRepo := memory.NewAddressRepository()
	orderRepo := memory.NewOrderRepository(inventoryRepo, eventRepo)
	suite.timeline = memory.NewTimelineRepository()

	suite.pipeline = events.NewPipeline(eventRepo, events.WithLogger(logger))
	suite.inventorySvc = inventory.NewService(
		productRepo,
		warehouseRepo,
		inventoryRepo,
		suite.pipeline,
		logger,
		nil,
	)
	suite.crmSvc = crm.NewService(addressRepo, logger)
	suite.orderSvc = order.NewService(
		orderRepo,
		productRepo,
		addressRepo,
		suite.inventorySvc,
		suite.timeline,
		logger,
	)

	orchestrator.New(suite.inventorySvc, suite.orderSvc, logger).Register(suite.pipeline)
}

// seedCatalog создает товар, склад с запасом и адрес доставки.
func (suite *OrderLifecycleTestSuite) seedCatalog(stock int64) (domain.Product, domain.Warehouse, domain.Address) {
	require := suite.Require()

	price, weight := "100", "1"
	product, err := suite.inventorySvc.CreateProduct("Monitor", []domain.ProductAttribute{
		{Name: "price", Value: &price},
		{Name: "weight", Value: &weight},
	})
	require.NoError(err)

	warehouse, err := suite.inventorySvc.CreateWarehouse("Main", "Moscow", domain.Coords{Lat: 55.80, Lng: 37.60})
	require.NoError(err)
	require.NoError(suite.inventorySvc.AddInventory(warehouse.ID, product.ID, stock))

	address, err := suite.crmSvc.CreateAddress("cust-1", domain.Coords{Lat: 55.75, Lng: 37.61}, nil)
	require.NoError(err)

	return product, warehouse, address
}

// finalizeDraft проводит черновик через адрес и финализацию.
func (suite *OrderLifecycleTestSuite) finalizeDraft(productID, addressID string, qty int64) domain.Order {
	require := suite.Require()

	draft, err := suite.orderSvc.CreateDraftOrder("cust-1", []domain.OrderItem{{ProductID: productID, Quantity: qty}})
	require.NoError(err)

	_, err = suite.orderSvc.UpdateDraftOrder(draft.ID, domain.DraftPatch{AddressID: &addressID})
	require.NoError(err)

	proposal, err := suite.orderSvc.CreateOrderProposal(draft.ID)
	require.NoError(err)

	finalized, err := suite.orderSvc.FinalizeOrder(draft.ID, proposal)
	require.NoError(err)
	require.Equal(domain.OrderStatusProcessing, finalized.Status)

	return finalized
}

// drainPipeline обрабатывает события до пустой очереди.
func (suite *OrderLifecycleTestSuite) drainPipeline() {
	for suite.pipeline.ProcessOnce(context.Background()) {
	}
}

func (suite *OrderLifecycleTestSuite) TestOrderConfirmedAfterFinalization() {
	require := suite.Require()

	product, warehouse, address := suite.seedCatalog(100)
	finalized := suite.finalizeDraft(product.ID, address.ID, 10)

	suite.drainPipeline()

	confirmed, err := suite.orderSvc.GetOrder(finalized.ID)
	require.NoError(err)
	require.Equal(domain.OrderStatusConfirmed, confirmed.Status)
	require.NotEmpty(confirmed.Allocations)
	for _, allocation := range confirmed.Allocations {
		require.Equal(domain.AllocationStatusConfirmed, allocation.Status)
	}

	record, err := suite.inventorySvc.GetInventory(warehouse.ID, product.ID)
	require.NoError(err)
	require.EqualValues(90, record.Quantity)
}

func (suite *OrderLifecycleTestSuite) TestOrderCancelledWhenStockDisappears() {
	require := suite.Require()

	product, warehouse, address := suite.seedCatalog(100)
	finalized := suite.finalizeDraft(product.ID, address.ID, 80)

	// Финализация не списывает остаток: конкурирующее списание успевает
	// забрать товар до подтверждения резерва.
	require.NoError(suite.inventorySvc.SubtractInventory(warehouse.ID, product.ID, 50))

	suite.drainPipeline()

	cancelled, err := suite.orderSvc.GetOrder(finalized.ID)
	require.NoError(err)
	require.Equal(domain.OrderStatusCancelled, cancelled.Status)
	for _, allocation := range cancelled.Allocations {
		require.Equal(domain.AllocationStatusCancelled, allocation.Status)
	}

	record, err := suite.inventorySvc.GetInventory(warehouse.ID, product.ID)
	require.NoError(err)
	require.EqualValues(50, record.Quantity)
}

func (suite *OrderLifecycleTestSuite) TestProposalPricingSurvivesFinalization() {
	require := suite.Require()

	product, _, address := suite.seedCatalog(100)

	draft, err := suite.orderSvc.CreateDraftOrder("cust-1", []domain.OrderItem{{ProductID: product.ID, Quantity: 10}})
	require.NoError(err)
	_, err = suite.orderSvc.UpdateDraftOrder(draft.ID, domain.DraftPatch{AddressID: &address.ID})
	require.NoError(err)

	proposal, err := suite.orderSvc.CreateOrderProposal(draft.ID)
	require.NoError(err)
	require.NoError(suite.orderSvc.ValidateOrderProposal(proposal))

	finalized, err := suite.orderSvc.FinalizeOrder(draft.ID, proposal)
	require.NoError(err)
	require.NotNil(finalized.Pricing)
	require.Equal(proposal.Pricing.TotalCost, finalized.Pricing.TotalCost)
	require.Equal(proposal.Pricing.TotalPrice, finalized.Pricing.TotalPrice)
}

func (suite *OrderLifecycleTestSuite) TestFulfilledIsTerminal() {
	require := suite.Require()

	product, _, address := suite.seedCatalog(100)
	finalized := suite.finalizeDraft(product.ID, address.ID, 10)
	suite.drainPipeline()

	require.NoError(suite.orderSvc.SetOrderStatus(finalized.ID, domain.OrderStatusFulfilled))
	require.ErrorIs(
		suite.orderSvc.SetOrderStatus(finalized.ID, domain.OrderStatusCancelled),
		domain.ErrOrderState,
	)

	timeline, err := suite.timeline.List(finalized.ID)
	require.NoError(err)
	require.NotEmpty(timeline)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

package inventory

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/metrics"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

// Размер страницы при переборе складов по возрастанию расстояния.
const nearestPageSize = 10

// Service реализует учёт каталога, складов и остатков, а также жизненный цикл
// резервирования под заказы.
type Service struct {
	products   domain.ProductRepository
	warehouses domain.WarehouseRepository
	inventory  domain.InventoryRepository
	events     domain.EventSink
	logger     *log.Entry
	metrics    *metrics.PipelineMetrics
}

// NewService создаёт рабочий экземпляр сервиса учёта.
func NewService(
	products domain.ProductRepository,
	warehouses domain.WarehouseRepository,
	inventory domain.InventoryRepository,
	events domain.EventSink,
	logger *log.Entry,
	pipelineMetrics *metrics.PipelineMetrics,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Service{
		products:   products,
		warehouses: warehouses,
		inventory:  inventory,
		events:     events,
		logger:     logger,
		metrics:    pipelineMetrics,
	}
}

// CreateProduct регистрирует товар вместе со свойствами.
func (s *Service) CreateProduct(name string, attrs []domain.ProductAttribute) (domain.Product, error) {
	product := domain.Product{
		ID:   uid.New(uid.PrefixProduct),
		Name: name,
	}
	for _, attr := range attrs {
		attr.ID = uid.New(uid.PrefixAttribute)
		attr.ProductID = product.ID
		product.Attributes = append(product.Attributes, attr)
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errs[0]
	}

	if err := s.products.Create(product); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product created")
	return product, nil
}

// DangerouslySetAttributes записывает свойства товара по имени: упомянутые
// обновляются или добавляются, остальные сохраняются. Изменение не
// пересчитывает уже зафиксированный прайсинг заказов, отсюда имя.
func (s *Service) DangerouslySetAttributes(productID string, attrs []domain.ProductAttribute) (domain.Product, error) {
	for i := range attrs {
		attrs[i].ID = uid.New(uid.PrefixAttribute)
		attrs[i].ProductID = productID
	}
	if err := s.products.UpsertAttributes(productID, attrs); err != nil {
		return domain.Product{}, err
	}
	s.logger.WithField("product_id", productID).Warn("product attributes changed")
	return s.products.Get(productID)
}

// GetProduct возвращает товар по идентификатору или точному имени.
func (s *Service) GetProduct(idOrName string) (domain.Product, error) {
	return s.products.Get(idOrName)
}

// ListProducts возвращает каталог целиком.
func (s *Service) ListProducts() ([]domain.Product, error) {
	return s.products.List()
}

// CreateWarehouse регистрирует склад.
func (s *Service) CreateWarehouse(name, city string, coords domain.Coords) (domain.Warehouse, error) {
	warehouse := domain.Warehouse{
		ID:     uid.New(uid.PrefixWarehouse),
		Name:   name,
		City:   city,
		Coords: coords,
	}
	if errs := warehouse.Validate(); len(errs) > 0 {
		return domain.Warehouse{}, errs[0]
	}
	if err := s.warehouses.Create(warehouse); err != nil {
		return domain.Warehouse{}, err
	}
	s.logger.WithFields(log.Fields{
		"warehouse_id": warehouse.ID,
		"name":         warehouse.Name,
	}).Info("warehouse created")
	return warehouse, nil
}

// GetWarehouse возвращает склад по идентификатору.
func (s *Service) GetWarehouse(id string) (domain.Warehouse, error) {
	return s.warehouses.Get(id)
}

// ListWarehouses возвращает все склады.
func (s *Service) ListWarehouses() ([]domain.Warehouse, error) {
	return s.warehouses.List()
}

// AddInventory увеличивает остаток по паре склад/товар.
func (s *Service) AddInventory(warehouseID, productID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	if _, err := s.warehouses.Get(warehouseID); err != nil {
		return err
	}
	if _, err := s.products.Get(productID); err != nil {
		return err
	}
	return s.inventory.Add(warehouseID, productID, qty)
}

// SubtractInventory уменьшает остаток по паре склад/товар.
func (s *Service) SubtractInventory(warehouseID, productID string, qty int64) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	return s.inventory.Subtract(warehouseID, productID, qty)
}

// GetInventory возвращает запись остатка.
func (s *Service) GetInventory(warehouseID, productID string) (domain.InventoryRecord, error) {
	return s.inventory.Get(warehouseID, productID)
}

// ListInventory возвращает остатки склада.
func (s *Service) ListInventory(warehouseID string) ([]domain.InventoryRecord, error) {
	if _, err := s.warehouses.Get(warehouseID); err != nil {
		return nil, err
	}
	return s.inventory.ListByWarehouse(warehouseID)
}

// IsAllocationValid проверяет исполнимость плана резервирования, не меняя
// остатков.
func (s *Service) IsAllocationValid(proposals []domain.AllocationProposal) error {
	if len(proposals) == 0 {
		return domain.ErrProposalInvalid
	}
	for _, p := range proposals {
		if p.Quantity <= 0 {
			return domain.ErrProposalInvalid
		}
	}
	return s.inventory.CheckAllocation(proposals)
}

// PlanAllocation строит план резервирования позиции заказа: склады
// перебираются страницами по возрастанию расстояния до адреса доставки, с
// каждого берётся доступный остаток, пока потребность не закрыта. Если
// остатков на всех складах не хватает, возвращается частичный план:
// недобор обнаруживает валидация предложения, сверяя суммы плана с
// количествами позиций.
func (s *Service) PlanAllocation(productID string, dest domain.Coords, qty int64) ([]domain.AllocationProposal, error) {
	if qty <= 0 {
		return nil, domain.ErrItemQtyInvalid
	}

	remaining := qty
	proposals := make([]domain.AllocationProposal, 0, 1)
	for offset := 0; remaining > 0; offset += nearestPageSize {
		page, err := s.warehouses.NearestWithStock(productID, dest, nearestPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, candidate := range page {
			take := candidate.Stock
			if take > remaining {
				take = remaining
			}
			proposals = append(proposals, domain.AllocationProposal{
				WarehouseID: candidate.Warehouse.ID,
				ProductID:   productID,
				Quantity:    take,
				Distance:    candidate.Distance,
			})
			remaining -= take
			if remaining == 0 {
				break
			}
		}
	}
	return proposals, nil
}

// ConfirmAllocation списывает остатки по PENDING-строкам заказа и сообщает
// результат конвейеру событий.
func (s *Service) ConfirmAllocation(orderID string) error {
	if err := s.inventory.ConfirmAllocations(orderID); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("allocation confirm failed")
		s.emit(domain.EventInventoryAllocFailed, domain.OrderEventPayload{
			OrderID: orderID,
			Reason:  err.Error(),
		})
		return err
	}

	s.logger.WithField("order_id", orderID).Info("allocation confirmed")
	if s.metrics != nil {
		s.metrics.RecordAllocationConfirmed()
	}
	s.emit(domain.EventInventoryAllocConfirmed, domain.OrderEventPayload{OrderID: orderID})
	return nil
}

// CancelAllocation отменяет резервирование заказа и возвращает остатки по
// подтверждённым строкам.
func (s *Service) CancelAllocation(orderID string) error {
	if err := s.inventory.CancelAllocations(orderID); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("allocation cancel failed")
		return err
	}
	s.logger.WithField("order_id", orderID).Info("allocation cancelled")
	if s.metrics != nil {
		s.metrics.RecordAllocationCancelled()
	}
	return nil
}

// GetAllocatedStock возвращает строки резервирования заказа.
func (s *Service) GetAllocatedStock(orderID string) ([]domain.Allocation, error) {
	return s.inventory.ListAllocations(orderID)
}

// GetNearestWarehouses возвращает страницу складов с остатком товара,
// упорядоченную по расстоянию до точки назначения.
func (s *Service) GetNearestWarehouses(productID string, dest domain.Coords, limit, offset int) ([]domain.NearestWarehouse, error) {
	if !dest.Valid() {
		return nil, domain.ErrCoordsInvalid
	}
	return s.warehouses.NearestWithStock(productID, dest, limit, offset)
}

func (s *Service) emit(eventType domain.EventType, payload domain.OrderEventPayload) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(eventType, payload.Encode()); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   payload.OrderID,
		}).Error("emit event failed")
	}
}

var _ domain.AllocationController = (*Service)(nil)

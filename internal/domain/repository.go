package domain

import "time"

// ProductRepository описывает требования к хранилищу каталога товаров.
type ProductRepository interface {
	// Create сохраняет товар вместе со свойствами. Возвращает
	// ErrDuplicateProductName при конфликте по имени.
	Create(product Product) error
	// UpsertAttributes записывает свойства товара по имени: существующие
	// обновляются, новые добавляются, не упомянутые остаются нетронутыми.
	UpsertAttributes(productID string, attrs []ProductAttribute) error
	// Get возвращает товар по идентификатору или точному имени.
	Get(idOrName string) (Product, error)
	// List возвращает все товары каталога.
	List() ([]Product, error)
}

// WarehouseRepository описывает требования к хранилищу складов.
type WarehouseRepository interface {
	// Create сохраняет новый склад.
	Create(warehouse Warehouse) error
	// Get возвращает склад по идентификатору или ErrWarehouseNotFound.
	Get(id string) (Warehouse, error)
	// List возвращает все склады.
	List() ([]Warehouse, error)
	// NearestWithStock возвращает страницу складов с положительным остатком
	// товара, упорядоченную по возрастанию расстояния до точки назначения.
	NearestWithStock(productID string, dest Coords, limit, offset int) ([]NearestWarehouse, error)
}

// InventoryRepository описывает хранилище остатков и строк резервирования.
type InventoryRepository interface {
	// Add увеличивает остаток по паре склад/товар (upsert).
	Add(warehouseID, productID string, qty int64) error
	// Subtract уменьшает остаток; при нехватке возвращает ErrInsufficientStock,
	// остаток не меняется.
	Subtract(warehouseID, productID string, qty int64) error
	// Get возвращает запись остатка или ErrInventoryNotFound.
	Get(warehouseID, productID string) (InventoryRecord, error)
	// ListByWarehouse возвращает все остатки склада.
	ListByWarehouse(warehouseID string) ([]InventoryRecord, error)
	// CheckAllocation проверяет исполнимость плана резервирования: списания
	// выполняются в транзакции, которая всегда откатывается.
	CheckAllocation(proposals []AllocationProposal) error
	// CreateAllocations сохраняет строки резервирования в статусе PENDING.
	// Остатки не списываются.
	CreateAllocations(allocations []Allocation) error
	// ConfirmAllocations атомарно списывает остатки по всем PENDING-строкам
	// заказа и переводит их в CONFIRMED. Всё или ничего.
	ConfirmAllocations(orderID string) error
	// CancelAllocations переводит строки CONFIRMED|PENDING в CANCELLED и
	// возвращает остатки только по строкам, бывшим CONFIRMED.
	CancelAllocations(orderID string) error
	// ListAllocations возвращает строки резервирования заказа.
	ListAllocations(orderID string) ([]Allocation, error)
}

// AddressRepository описывает CRM-хранилище адресов доставки.
type AddressRepository interface {
	// Create сохраняет новый адрес.
	Create(address Address) error
	// Get возвращает адрес по идентификатору или ErrAddressNotFound.
	Get(id string) (Address, error)
	// ListByCustomer возвращает адреса клиента.
	ListByCustomer(externalCustomerID string) ([]Address, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateDraft сохраняет заголовок черновика и позиции одной транзакцией.
	CreateDraft(order Order) error
	// UpdateDraft применяет частичное обновление; допустимо только пока заказ
	// в статусе DRAFT, иначе ErrOrderNotDraft.
	UpdateDraft(orderID string, patch DraftPatch) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента.
	ListByCustomer(externalCustomerID string) ([]Order, error)
	// ListByAddress возвращает заказы по адресу доставки.
	ListByAddress(addressID string) ([]Order, error)
	// ListByAgent возвращает заказы, оформленные агентом.
	ListByAgent(agentID string) ([]Order, error)
	// UpdateStatus выполняет условный переход: статус меняется на to, только
	// если текущий входит в from. Ноль затронутых строк — ErrOrderState.
	UpdateStatus(orderID string, from []OrderStatus, to OrderStatus) error
	// Finalize одной транзакцией переводит DRAFT→PROCESSING, записывает
	// прайсинг, создаёт PENDING-строки резервирования и событие конвейера.
	Finalize(orderID string, pricing OrderPricing, allocations []Allocation, event Event) error
}

// EventRepository описывает устойчивую очередь событий в Postgres.
type EventRepository interface {
	// Insert сохраняет событие в статусе PENDING.
	Insert(event Event) error
	// ClaimNextPending атомарно захватывает старейшее PENDING-событие одного
	// из перечисленных типов (PENDING→PROCESSING, с блокировкой строки).
	// Возвращает ErrNoPendingEvents, если захватывать нечего.
	ClaimNextPending(types []EventType) (Event, error)
	// MarkDelivered переводит событие PROCESSING→DELIVERED.
	MarkDelivered(id string) error
	// MarkFailed переводит событие PROCESSING→FAILED.
	MarkFailed(id string) error
	// RequeueFailed возвращает до limit событий FAILED→PENDING и сообщает,
	// сколько строк было переведено.
	RequeueFailed(limit int) (int, error)
	// Stats возвращает состояние backlog для метрик.
	Stats() (PipelineStats, error)
	// PurgeDelivered удаляет до limit DELIVERED-событий, созданных раньше
	// before, и сообщает, сколько строк было удалено.
	PurgeDelivered(before time.Time, limit int) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

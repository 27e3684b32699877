package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("external_customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отсутствующего идентификатора товара в позиции заказа.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка повторяющегося товара в позициях заказа.
	ErrItemDuplicateProduct = errors.New("order items must reference distinct products")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product_name is required")
	// Ошибка отсутствующего названия склада.
	ErrWarehouseNameRequired = errors.New("warehouse_name is required")
	// Ошибка некорректных координат (широта/долгота вне допустимых диапазонов).
	ErrCoordsInvalid = errors.New("coordinates out of range")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateProductName — товар с таким именем уже существует.
	ErrDuplicateProductName = errors.New("product name already exists")
	// ErrWarehouseNotFound возвращается, если склад не найден.
	ErrWarehouseNotFound = errors.New("warehouse not found")
	// ErrInventoryNotFound — по паре склад/товар нет записи остатка.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrInsufficientStock — остатка недостаточно для списания или резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAllocationNotFound — по заказу нет строк резервирования.
	ErrAllocationNotFound = errors.New("allocation not found")
	// ErrAllocationState — недопустимый переход статуса резервирования
	// (например, повторное подтверждение, когда PENDING-строк уже нет).
	ErrAllocationState = errors.New("allocation is not in a valid state for transition")
	// ErrAddressNotFound возвращается, если адрес не найден.
	ErrAddressNotFound = errors.New("address not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderState — условное обновление статуса заказа не затронуло строк:
	// текущий статус не входит в допустимые предшественники целевого.
	ErrOrderState = errors.New("order is not in a valid state for transition")
	// ErrOrderNotDraft — операция допустима только для заказа в статусе DRAFT.
	ErrOrderNotDraft = errors.New("order is not a draft")
	// ErrAlreadyExists — запись с таким идентификатором уже существует.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrStrategyNotFound — запрошенная стратегия не зарегистрирована.
	// Это ошибка программиста, а не бизнес-условие.
	ErrStrategyNotFound = errors.New("strategy not found")
	// ErrProposalInvalid оборачивает причину, по которой proposal не прошёл валидацию.
	ErrProposalInvalid = errors.New("order proposal is invalid")

	// ErrNoPendingEvents — в очереди нет событий PENDING по подписанным типам.
	ErrNoPendingEvents = errors.New("no pending events")
	// ErrEventNotFound возвращается, если событие не найдено.
	ErrEventNotFound = errors.New("event not found")
)

// IsNotFound проверяет, относится ли ошибка к классу «запись не найдена».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrWarehouseNotFound) ||
		errors.Is(err, ErrInventoryNotFound) ||
		errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

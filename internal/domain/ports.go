package domain

// EventSink принимает события от сервисов. Реализуется конвейером событий.
type EventSink interface {
	// Emit сохраняет событие и возвращает его персистентную форму.
	Emit(eventType EventType, payload []byte) (Event, error)
}

// EventMirror дублирует устойчивые события во внешнюю шину (например, Kafka).
// Зеркало не является источником истины: ошибки публикации не влияют на
// конвейер.
type EventMirror interface {
	Publish(event Event) error
}

// AllocationController — операции над резервами, нужные оркестратору.
type AllocationController interface {
	// ConfirmAllocation подтверждает резервы заказа и списывает остатки.
	ConfirmAllocation(orderID string) error
	// CancelAllocation отменяет резервы заказа.
	CancelAllocation(orderID string) error
}

// OrderStatusController — операции над статусом заказа, нужные оркестратору.
type OrderStatusController interface {
	// SetOrderStatus выполняет переход статуса с проверкой предшественника.
	SetOrderStatus(orderID string, status OrderStatus) error
}

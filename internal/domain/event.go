package domain

import (
	"encoding/json"
	"time"
)

// EventType перечисляет типы событий конвейера.
type EventType string

const (
	// EventOrderProcessing — заказ финализирован, пора подтверждать резервы.
	EventOrderProcessing EventType = "ORDER_PROCESSING"
	// EventOrderExecuted — заказ исполнен (хук для внешних потребителей).
	EventOrderExecuted EventType = "ORDER_EXECUTED"
	// EventOrderFailed — обработка заказа завершилась неуспехом.
	EventOrderFailed EventType = "ORDER_FAILED"
	// EventOrderRetry — запрос на повторную обработку заказа.
	EventOrderRetry EventType = "ORDER_RETRY"
	// EventInventoryAllocFailed — подтверждение резервов не удалось.
	EventInventoryAllocFailed EventType = "INVENTORY_ALLOC_FAILED"
	// EventInventoryAllocConfirmed — резервы подтверждены, остатки списаны.
	EventInventoryAllocConfirmed EventType = "INVENTORY_ALLOC_CONFIRMED"
)

// EventStatus отражает положение события в конвейере доставки.
type EventStatus string

const (
	// EventStatusPending — событие записано и ждёт обработчика.
	EventStatusPending EventStatus = "PENDING"
	// EventStatusProcessing — событие захвачено одним из поллеров.
	EventStatusProcessing EventStatus = "PROCESSING"
	// EventStatusDelivered — обработчик отработал без ошибки.
	EventStatusDelivered EventStatus = "DELIVERED"
	// EventStatusFailed — обработчик вернул ошибку; автоповтора нет.
	EventStatusFailed EventStatus = "FAILED"
)

// Event — устойчивое событие конвейера. Payload — непрозрачный JSON.
type Event struct {
	ID        string
	Type      EventType
	Payload   []byte
	Status    EventStatus
	CreatedOn time.Time
}

// OrderEventPayload — полезная нагрузка событий жизненного цикла заказа.
type OrderEventPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

// Encode сериализует полезную нагрузку в JSON для поля Payload.
func (p OrderEventPayload) Encode() []byte {
	b, _ := json.Marshal(p)
	return b
}

// DecodeOrderEventPayload разбирает полезную нагрузку события заказа.
func DecodeOrderEventPayload(raw []byte) (OrderEventPayload, error) {
	var p OrderEventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return OrderEventPayload{}, err
	}
	return p, nil
}

// PipelineStats описывает текущее состояние backlog конвейера событий.
type PipelineStats struct {
	PendingCount    int
	FailedCount     int
	OldestPendingAt time.Time
}

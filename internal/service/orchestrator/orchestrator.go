package orchestrator

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/service/events"
)

// Orchestrator связывает конвейер событий с учётом остатков и статусами
// заказов: финализация запускает подтверждение резервов, результат
// подтверждения двигает заказ дальше или откатывает его.
type Orchestrator struct {
	allocations domain.AllocationController
	orders      domain.OrderStatusController
	logger      *log.Entry
}

// New создаёт оркестратор.
func New(allocations domain.AllocationController, orders domain.OrderStatusController, logger *log.Entry) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "orchestrator")
	}
	return &Orchestrator{
		allocations: allocations,
		orders:      orders,
		logger:      logger,
	}
}

// Register подписывает оркестратор на события конвейера.
func (o *Orchestrator) Register(pipeline *events.Pipeline) {
	pipeline.Subscribe(domain.EventOrderProcessing, o.handleOrderProcessing)
	pipeline.Subscribe(domain.EventInventoryAllocConfirmed, o.handleAllocConfirmed)
	pipeline.Subscribe(domain.EventInventoryAllocFailed, o.handleAllocFailed)
}

// handleOrderProcessing подтверждает резервы финализированного заказа.
// Результат (успех или провал) сервис учёта сам публикует в конвейер.
func (o *Orchestrator) handleOrderProcessing(event domain.Event) error {
	payload, err := domain.DecodeOrderEventPayload(event.Payload)
	if err != nil {
		return err
	}
	o.logger.WithField("order_id", payload.OrderID).Info("confirming order allocation")

	if err := o.allocations.ConfirmAllocation(payload.OrderID); err != nil {
		// Провал уже ушёл в конвейер событием INVENTORY_ALLOC_FAILED, само
		// событие финализации при этом считается доставленным.
		o.logger.WithError(err).WithField("order_id", payload.OrderID).Warn("allocation confirm rejected")
	}
	return nil
}

// handleAllocConfirmed переводит заказ в CONFIRMED.
func (o *Orchestrator) handleAllocConfirmed(event domain.Event) error {
	payload, err := domain.DecodeOrderEventPayload(event.Payload)
	if err != nil {
		return err
	}
	if err := o.orders.SetOrderStatus(payload.OrderID, domain.OrderStatusConfirmed); err != nil {
		o.logger.WithError(err).WithField("order_id", payload.OrderID).Error("failed to confirm order")
		return err
	}
	return nil
}

// handleAllocFailed отменяет заказ, резервы которого не удалось подтвердить.
func (o *Orchestrator) handleAllocFailed(event domain.Event) error {
	payload, err := domain.DecodeOrderEventPayload(event.Payload)
	if err != nil {
		return err
	}
	o.logger.WithFields(log.Fields{
		"order_id": payload.OrderID,
		"reason":   payload.Reason,
	}).Warn("allocation failed, cancelling order")

	if err := o.allocations.CancelAllocation(payload.OrderID); err != nil {
		// PENDING-строки могли быть отменены ранее; заказ всё равно закрываем.
		o.logger.WithError(err).WithField("order_id", payload.OrderID).Warn("allocation cancel rejected")
	}
	if err := o.orders.SetOrderStatus(payload.OrderID, domain.OrderStatusCancelled); err != nil {
		o.logger.WithError(err).WithField("order_id", payload.OrderID).Error("failed to cancel order")
		return err
	}
	return nil
}

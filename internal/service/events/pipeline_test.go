package events

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/storage/memory"
)

func TestPipelineEmitAndDeliver(t *testing.T) {
	repo := memory.NewEventRepository()
	pipeline := NewPipeline(repo)

	var delivered []domain.Event
	pipeline.Subscribe(domain.EventOrderProcessing, func(event domain.Event) error {
		delivered = append(delivered, event)
		return nil
	})

	emitted, err := pipeline.Emit(domain.EventOrderProcessing, domain.OrderEventPayload{OrderID: "ord_1"}.Encode())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if emitted.Status != domain.EventStatusPending {
		t.Fatalf("expected PENDING, got %s", emitted.Status)
	}

	if !pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected an event to be processed")
	}
	if len(delivered) != 1 || delivered[0].ID != emitted.ID {
		t.Fatalf("expected delivery of %s, got %+v", emitted.ID, delivered)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 || stats.FailedCount != 0 {
		t.Fatalf("expected empty backlog, got %+v", stats)
	}

	// Очередь пуста — следующий цикл ничего не захватывает.
	if pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected no event to be processed")
	}
}

func TestPipelineHandlerErrorMarksFailed(t *testing.T) {
	repo := memory.NewEventRepository()
	pipeline := NewPipeline(repo)

	pipeline.Subscribe(domain.EventOrderProcessing, func(event domain.Event) error {
		return errors.New("handler exploded")
	})

	if _, err := pipeline.Emit(domain.EventOrderProcessing, domain.OrderEventPayload{OrderID: "ord_1"}.Encode()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected an event to be processed")
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.FailedCount != 1 {
		t.Fatalf("expected 1 failed event, got %+v", stats)
	}

	// Автоматического повтора нет: событие остаётся FAILED до ручной
	// переобработки.
	if pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected failed event to stay out of the queue")
	}
	requeued, err := repo.RequeueFailed(10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued, got %d", requeued)
	}
	if !pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected requeued event to be processed")
	}
}

func TestPipelineIgnoresUnsubscribedTypes(t *testing.T) {
	repo := memory.NewEventRepository()
	pipeline := NewPipeline(repo)

	pipeline.Subscribe(domain.EventOrderProcessing, func(event domain.Event) error { return nil })

	if _, err := pipeline.Emit(domain.EventOrderExecuted, domain.OrderEventPayload{OrderID: "ord_1"}.Encode()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if pipeline.ProcessOnce(context.Background()) {
		t.Fatal("expected event of unsubscribed type to stay pending")
	}

	stats, _ := repo.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("expected event to remain pending, got %+v", stats)
	}
}

// failingMirror всегда возвращает ошибку публикации.
type failingMirror struct{}

func (failingMirror) Publish(event domain.Event) error { return errors.New("broker down") }

func TestPipelineMirrorFailureDoesNotBlockEmit(t *testing.T) {
	repo := memory.NewEventRepository()
	pipeline := NewPipeline(repo, WithMirror(failingMirror{}))

	if _, err := pipeline.Emit(domain.EventOrderProcessing, domain.OrderEventPayload{OrderID: "ord_1"}.Encode()); err != nil {
		t.Fatalf("emit must not fail on mirror error: %v", err)
	}

	stats, _ := repo.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("expected event persisted despite mirror failure, got %+v", stats)
	}
}

func TestPipelineMultipleHandlersSingleDelivery(t *testing.T) {
	repo := memory.NewEventRepository()
	pipeline := NewPipeline(repo)

	var first, second int
	pipeline.Subscribe(domain.EventOrderProcessing, func(event domain.Event) error {
		first++
		return nil
	})
	pipeline.Subscribe(domain.EventOrderProcessing, func(event domain.Event) error {
		second++
		return nil
	})

	const total = 20
	for i := 0; i < total; i++ {
		if _, err := pipeline.Emit(domain.EventOrderProcessing, domain.OrderEventPayload{OrderID: "ord_1"}.Encode()); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	for pipeline.ProcessOnce(context.Background()) {
	}

	// Каждое событие уходит ровно одному обработчику.
	if first+second != total {
		t.Fatalf("expected %d deliveries, got %d", total, first+second)
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewPipelineMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newPipelineMetricsWithRegisterer(registry)
	if m == nil {
		t.Fatal("expected metrics instance")
	}

	m.RecordEventEmitted("ORDER_PROCESSING")
	m.RecordEventDelivered("ORDER_PROCESSING")
	m.RecordEventFailed("ORDER_PROCESSING")
	m.RecordEventsRequeued(3)
	m.RecordHandlerDuration("ORDER_PROCESSING", 25*time.Millisecond)
	m.SetBacklog(5, 1)
	m.RecordAllocationConfirmed()
	m.RecordAllocationCancelled()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestNewPipelineMetricsDoubleRegister(t *testing.T) {
	registry := prometheus.NewRegistry()

	// Повторная регистрация возвращает существующие коллекторы, не паникует.
	first := newPipelineMetricsWithRegisterer(registry)
	second := newPipelineMetricsWithRegisterer(registry)
	if first == nil || second == nil {
		t.Fatal("expected both instances")
	}
	second.RecordEventEmitted("ORDER_EXECUTED")
}

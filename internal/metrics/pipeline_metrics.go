package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics содержит метрики конвейера событий и резервирования.
type PipelineMetrics struct {
	// Счётчики событий
	eventsEmitted   *prometheus.CounterVec
	eventsDelivered *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
	eventsRequeued  prometheus.Counter

	// Гистограмма времени обработки события
	handlerDuration *prometheus.HistogramVec

	// Gauge состояния backlog
	pendingEvents prometheus.Gauge
	failedEvents  prometheus.Gauge

	// Счётчики резервирования
	allocationsConfirmed prometheus.Counter
	allocationsCancelled prometheus.Counter
}

// NewPipelineMetrics создаёт новый экземпляр метрик конвейера.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPipelineMetricsWithRegisterer(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		eventsEmitted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "scoms_pipeline_events_emitted_total",
			Help: "Total number of pipeline events emitted",
		}, []string{"event_type"}),
		eventsDelivered: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "scoms_pipeline_events_delivered_total",
			Help: "Total number of pipeline events delivered to a handler",
		}, []string{"event_type"}),
		eventsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "scoms_pipeline_events_failed_total",
			Help: "Total number of pipeline events whose handler returned an error",
		}, []string{"event_type"}),
		eventsRequeued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "scoms_pipeline_events_requeued_total",
			Help: "Total number of failed events returned to the queue",
		}),
		handlerDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "scoms_pipeline_handler_duration_seconds",
			Help:    "Duration of pipeline event handlers in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"event_type"}),
		pendingEvents: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "scoms_pipeline_pending_events",
			Help: "Number of events currently waiting in the queue",
		}),
		failedEvents: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "scoms_pipeline_failed_events",
			Help: "Number of events currently in FAILED status",
		}),
		allocationsConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "scoms_allocations_confirmed_total",
			Help: "Total number of order allocations confirmed",
		}),
		allocationsCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "scoms_allocations_cancelled_total",
			Help: "Total number of order allocations cancelled",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordEventEmitted увеличивает счётчик созданных событий.
func (m *PipelineMetrics) RecordEventEmitted(eventType string) {
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordEventDelivered увеличивает счётчик доставленных событий.
func (m *PipelineMetrics) RecordEventDelivered(eventType string) {
	m.eventsDelivered.WithLabelValues(eventType).Inc()
}

// RecordEventFailed увеличивает счётчик проваленных событий.
func (m *PipelineMetrics) RecordEventFailed(eventType string) {
	m.eventsFailed.WithLabelValues(eventType).Inc()
}

// RecordEventsRequeued увеличивает счётчик возвращённых в очередь событий.
func (m *PipelineMetrics) RecordEventsRequeued(count int) {
	m.eventsRequeued.Add(float64(count))
}

// RecordHandlerDuration записывает время обработки события.
func (m *PipelineMetrics) RecordHandlerDuration(eventType string, duration time.Duration) {
	m.handlerDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// SetBacklog обновляет gauge'и состояния очереди.
func (m *PipelineMetrics) SetBacklog(pending, failed int) {
	m.pendingEvents.Set(float64(pending))
	m.failedEvents.Set(float64(failed))
}

// RecordAllocationConfirmed увеличивает счётчик подтверждённых резервов.
func (m *PipelineMetrics) RecordAllocationConfirmed() {
	m.allocationsConfirmed.Inc()
}

// RecordAllocationCancelled увеличивает счётчик отменённых резервов.
func (m *PipelineMetrics) RecordAllocationCancelled() {
	m.allocationsCancelled.Inc()
}

package events

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/metrics"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

const defaultPollInterval = 500 * time.Millisecond

// Handler обрабатывает одно доставленное событие. Ошибка переводит событие
// в FAILED; обратно в очередь его возвращает только ручная переобработка.
type Handler func(event domain.Event) error

// PipelineOptions задаёт параметры конвейера событий.
type PipelineOptions struct {
	Logger       *log.Entry
	Mirror       domain.EventMirror
	Metrics      *metrics.PipelineMetrics
	PollInterval time.Duration
}

// Option настраивает Pipeline.
type Option func(*PipelineOptions)

// WithLogger задаёт logger конвейера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *PipelineOptions) {
		opts.Logger = logger
	}
}

// WithMirror задаёт необязательное зеркало событий (Kafka).
func WithMirror(mirror domain.EventMirror) Option {
	return func(opts *PipelineOptions) {
		opts.Mirror = mirror
	}
}

// WithMetrics задаёт метрики конвейера.
func WithMetrics(pipelineMetrics *metrics.PipelineMetrics) Option {
	return func(opts *PipelineOptions) {
		opts.Metrics = pipelineMetrics
	}
}

// WithPollInterval задаёт частоту опроса очереди при отсутствии событий.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *PipelineOptions) {
		opts.PollInterval = interval
	}
}

// Pipeline — конвейер событий поверх устойчивой очереди. Postgres хранит
// события и выдаёт их обработчикам ровно по одному захвату; зеркало в Kafka
// не влияет на доставку.
type Pipeline struct {
	repo         domain.EventRepository
	mirror       domain.EventMirror
	logger       *log.Entry
	metrics      *metrics.PipelineMetrics
	pollInterval time.Duration

	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
}

// NewPipeline создаёт конвейер событий.
func NewPipeline(repo domain.EventRepository, options ...Option) *Pipeline {
	opts := PipelineOptions{PollInterval: defaultPollInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-pipeline")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	return &Pipeline{
		repo:         repo,
		mirror:       opts.Mirror,
		logger:       logger,
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		handlers:     make(map[domain.EventType][]Handler),
	}
}

// Emit сохраняет событие в очередь и, при настроенном зеркале, публикует копию
// в Kafka. Ошибка зеркала не откатывает запись: источник истины — Postgres.
func (p *Pipeline) Emit(eventType domain.EventType, payload []byte) (domain.Event, error) {
	event := domain.Event{
		ID:      uid.New(uid.PrefixEvent),
		Type:    eventType,
		Payload: payload,
		Status:  domain.EventStatusPending,
	}
	if err := p.repo.Insert(event); err != nil {
		return domain.Event{}, err
	}
	if p.metrics != nil {
		p.metrics.RecordEventEmitted(string(eventType))
	}
	p.logger.WithFields(log.Fields{
		"event_id":   event.ID,
		"event_type": eventType,
	}).Debug("event emitted")

	if p.mirror != nil {
		if err := p.mirror.Publish(event); err != nil {
			p.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to mirror event")
		}
	}
	return event, nil
}

// Subscribe регистрирует обработчик типа события. Несколько обработчиков
// одного типа конкурируют: доставка уходит одному, выбранному случайно.
func (p *Pipeline) Subscribe(eventType domain.EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = append(p.handlers[eventType], handler)
}

// Run опрашивает очередь до отмены ctx. После успешного захвата следующий
// опрос выполняется сразу, пауза выдерживается только на пустой очереди.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		for p.ProcessOnce(ctx) {
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce захватывает и обрабатывает одно событие. Возвращает true, если
// событие было захвачено.
func (p *Pipeline) ProcessOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	p.refreshBacklogMetrics()

	types := p.subscribedTypes()
	if len(types) == 0 {
		return false
	}

	event, err := p.repo.ClaimNextPending(types)
	if err != nil {
		if !errors.Is(err, domain.ErrNoPendingEvents) {
			p.logger.WithError(err).Warn("failed to claim pending event")
		}
		return false
	}

	p.dispatch(event)
	p.refreshBacklogMetrics()
	return true
}

func (p *Pipeline) dispatch(event domain.Event) {
	handler := p.pickHandler(event.Type)
	if handler == nil {
		// Захвачено без обработчика не бывает: типы берутся из подписок.
		p.logger.WithField("event_type", event.Type).Error("no handler for claimed event")
		if err := p.repo.MarkFailed(event.ID); err != nil {
			p.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to mark event as failed")
		}
		return
	}

	start := time.Now()
	err := handler(event)
	if p.metrics != nil {
		p.metrics.RecordHandlerDuration(string(event.Type), time.Since(start))
	}

	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Error("event handler failed")
		if p.metrics != nil {
			p.metrics.RecordEventFailed(string(event.Type))
		}
		if markErr := p.repo.MarkFailed(event.ID); markErr != nil {
			p.logger.WithError(markErr).WithField("event_id", event.ID).Warn("failed to mark event as failed")
		}
		return
	}

	if p.metrics != nil {
		p.metrics.RecordEventDelivered(string(event.Type))
	}
	if err := p.repo.MarkDelivered(event.ID); err != nil {
		p.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to mark event as delivered")
	}
}

func (p *Pipeline) subscribedTypes() []domain.EventType {
	p.mu.RLock()
	defer p.mu.RUnlock()

	types := make([]domain.EventType, 0, len(p.handlers))
	for eventType := range p.handlers {
		types = append(types, eventType)
	}
	return types
}

func (p *Pipeline) pickHandler(eventType domain.EventType) Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()

	handlers := p.handlers[eventType]
	switch len(handlers) {
	case 0:
		return nil
	case 1:
		return handlers[0]
	default:
		return handlers[rand.Intn(len(handlers))]
	}
}

func (p *Pipeline) refreshBacklogMetrics() {
	if p.metrics == nil {
		return
	}
	stats, err := p.repo.Stats()
	if err != nil {
		p.logger.WithError(err).Warn("failed to collect pipeline backlog stats")
		return
	}
	p.metrics.SetBacklog(stats.PendingCount, stats.FailedCount)
}

var _ domain.EventSink = (*Pipeline)(nil)

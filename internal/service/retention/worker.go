package retention

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

const (
	defaultSweepInterval = 10 * time.Minute
	defaultBatchSize     = 500
	defaultMaxAge        = 72 * time.Hour
)

var (
	retentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoms_event_retention_runs_total",
		Help: "Total number of delivered-event retention runs grouped by result.",
	}, []string{"result"})
	retentionPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoms_event_retention_purged_total",
		Help: "Total number of purged delivered events.",
	})
	retentionLastPurged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scoms_event_retention_last_purged",
		Help: "Number of purged events during the last retention run.",
	})
)

// Options задает параметры воркера очистки доставленных событий.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	MaxAge    time.Duration
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между циклами очистки.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задает размер порции для одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithMaxAge задает возраст, после которого доставленное событие удаляется.
func WithMaxAge(maxAge time.Duration) Option {
	return func(opts *Options) {
		opts.MaxAge = maxAge
	}
}

// Worker периодически удаляет доставленные события старше MaxAge.
// PENDING, PROCESSING и FAILED события он не трогает: backlog остаётся
// видимым до ручной переобработки.
type Worker struct {
	repo      domain.EventRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	maxAge    time.Duration
}

// NewWorker создает воркер очистки доставленных событий.
func NewWorker(repo domain.EventRepository, options ...Option) *Worker {
	opts := Options{
		Interval:  defaultSweepInterval,
		BatchSize: defaultBatchSize,
		MaxAge:    defaultMaxAge,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-retention-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}

	return &Worker{
		repo:      repo,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		maxAge:    opts.MaxAge,
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("event retention worker is disabled: repo is nil")
		return
	}

	w.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx, time.Now().UTC())
		}
	}
}

func (w *Worker) sweep(ctx context.Context, now time.Time) {
	purged, err := w.PurgeBefore(ctx, now.Add(-w.maxAge))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		retentionRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("event retention run failed")
		return
	}

	retentionRunsTotal.WithLabelValues("ok").Inc()
	retentionLastPurged.Set(float64(purged))
	if purged > 0 {
		w.logger.WithField("purged", purged).Info("event retention run completed")
	}
}

// PurgeBefore удаляет все доставленные события старше before порциями
// batchSize.
func (w *Worker) PurgeBefore(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	totalPurged := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalPurged, err
		}

		purged, err := w.repo.PurgeDelivered(before, w.batchSize)
		if err != nil {
			return totalPurged, err
		}

		totalPurged += purged
		if purged > 0 {
			retentionPurgedTotal.Add(float64(purged))
		}

		if purged < w.batchSize {
			break
		}
	}

	return totalPurged, nil
}

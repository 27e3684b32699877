package app

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/scoms/internal/metrics"
	"github.com/vladislavdragonenkov/scoms/internal/service/crm"
	"github.com/vladislavdragonenkov/scoms/internal/service/events"
	"github.com/vladislavdragonenkov/scoms/internal/service/inventory"
	"github.com/vladislavdragonenkov/scoms/internal/service/orchestrator"
	"github.com/vladislavdragonenkov/scoms/internal/service/order"
	"github.com/vladislavdragonenkov/scoms/internal/service/retention"
	"github.com/vladislavdragonenkov/scoms/internal/storage/memory"
	"github.com/vladislavdragonenkov/scoms/internal/storage/postgres"
)

var (
	errPostgresDSNRequired  = errors.New("postgres storage requires SCOMS_POSTGRES_DSN")
	errUnknownStorageDriver = errors.New("unknown storage driver")
)

// Dependencies содержит собранный граф приложения.
type Dependencies struct {
	Products   domain.ProductRepository
	Warehouses domain.WarehouseRepository
	Inventory  domain.InventoryRepository
	Addresses  domain.AddressRepository
	Orders     domain.OrderRepository
	Events     domain.EventRepository
	Timeline   domain.TimelineRepository

	InventorySvc *inventory.Service
	CRMSvc       *crm.Service
	OrderSvc     *order.Service
	Pipeline     *events.Pipeline
	Retention    *retention.Worker
	Metrics      *metrics.PipelineMetrics

	Logger        *log.Entry
	store         *postgres.Store
	kafkaProducer *kafka.Producer
}

// NewDependencies собирает хранилища, сервисы и конвейер по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Logger:  logger,
		Metrics: metrics.NewPipelineMetrics(),
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		deps.store = store
		deps.Products = postgres.NewProductRepository(store)
		deps.Inventory = postgres.NewInventoryRepository(store)
		deps.Warehouses = postgres.NewWarehouseRepository(store)
		deps.Addresses = postgres.NewAddressRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Events = postgres.NewEventRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		logger.Info("postgres storage initialized")
	case StorageDriverMemory:
		inventoryRepo := memory.NewInventoryRepository()
		eventRepo := memory.NewEventRepository()
		deps.Products = memory.NewProductRepository()
		deps.Inventory = inventoryRepo
		deps.Warehouses = memory.NewWarehouseRepository(inventoryRepo)
		deps.Addresses = memory.NewAddressRepository()
		deps.Orders = memory.NewOrderRepository(inventoryRepo, eventRepo)
		deps.Events = eventRepo
		deps.Timeline = memory.NewTimelineRepository()
		logger.Info("in-memory storage initialized")
	}

	pipelineOptions := []events.Option{
		events.WithLogger(logger.WithField("component", "event-pipeline")),
		events.WithMetrics(deps.Metrics),
		events.WithPollInterval(cfg.PipelinePollInterval),
	}
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		deps.kafkaProducer = producer
		pipelineOptions = append(pipelineOptions, events.WithMirror(producer))
	}
	deps.Pipeline = events.NewPipeline(deps.Events, pipelineOptions...)
	deps.Retention = retention.NewWorker(
		deps.Events,
		retention.WithLogger(logger.WithField("component", "event-retention")),
		retention.WithMaxAge(cfg.EventRetentionMaxAge),
	)

	deps.InventorySvc = inventory.NewService(
		deps.Products,
		deps.Warehouses,
		deps.Inventory,
		deps.Pipeline,
		logger.WithField("component", "inventory"),
		deps.Metrics,
	)
	deps.CRMSvc = crm.NewService(deps.Addresses, logger.WithField("component", "crm"))
	deps.OrderSvc = order.NewService(
		deps.Orders,
		deps.Products,
		deps.Addresses,
		deps.InventorySvc,
		deps.Timeline,
		logger.WithField("component", "order"),
	)

	orchestrator.New(
		deps.InventorySvc,
		deps.OrderSvc,
		logger.WithField("component", "orchestrator"),
	).Register(deps.Pipeline)

	return deps, nil
}

// Close освобождает внешние ресурсы зависимостей.
func (d *Dependencies) Close() {
	closeKafka(d.kafkaProducer, d.Logger)
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

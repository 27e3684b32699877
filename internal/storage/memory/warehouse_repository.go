package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/geo"
)

// WarehouseRepository — in-memory хранилище складов. Для поиска ближайших
// складов с остатком опирается на InventoryRepository.
type WarehouseRepository struct {
	mu         sync.RWMutex
	warehouses map[string]domain.Warehouse
	inventory  *InventoryRepository
}

// NewWarehouseRepository создаёт in-memory реализацию WarehouseRepository.
func NewWarehouseRepository(inventory *InventoryRepository) *WarehouseRepository {
	return &WarehouseRepository{
		warehouses: make(map[string]domain.Warehouse),
		inventory:  inventory,
	}
}

func (r *WarehouseRepository) Create(warehouse domain.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.warehouses[warehouse.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if warehouse.CreatedAt.IsZero() {
		warehouse.CreatedAt = time.Now().UTC()
	}
	r.warehouses[warehouse.ID] = warehouse
	return nil
}

func (r *WarehouseRepository) Get(id string) (domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	warehouse, ok := r.warehouses[id]
	if !ok {
		return domain.Warehouse{}, domain.ErrWarehouseNotFound
	}
	return warehouse, nil
}

func (r *WarehouseRepository) List() ([]domain.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Warehouse, 0, len(r.warehouses))
	for _, w := range r.warehouses {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// NearestWithStock возвращает склады с положительным остатком товара,
// отсортированные по расстоянию до точки назначения.
func (r *WarehouseRepository) NearestWithStock(productID string, dest domain.Coords, limit, offset int) ([]domain.NearestWarehouse, error) {
	r.mu.RLock()
	candidates := make([]domain.Warehouse, 0, len(r.warehouses))
	for _, w := range r.warehouses {
		candidates = append(candidates, w)
	}
	r.mu.RUnlock()

	result := make([]domain.NearestWarehouse, 0, len(candidates))
	for _, w := range candidates {
		stock := r.inventory.stockFor(w.ID, productID)
		if stock <= 0 {
			continue
		}
		result = append(result, domain.NearestWarehouse{
			Warehouse: w,
			Stock:     stock,
			Distance:  geo.DistanceKm(w.Coords.Lat, w.Coords.Lng, dest.Lat, dest.Lng),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].Warehouse.ID < result[j].Warehouse.ID
	})

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.NearestWarehouse{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

var _ domain.WarehouseRepository = (*WarehouseRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

type warehouseRepository struct {
	db *sql.DB
}

// NewWarehouseRepository создаёт PostgreSQL-реализацию WarehouseRepository.
func NewWarehouseRepository(store *Store) domain.WarehouseRepository {
	return &warehouseRepository{db: store.DB()}
}

func (r *warehouseRepository) Create(warehouse domain.Warehouse) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if warehouse.CreatedAt.IsZero() {
		warehouse.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, city, lat, lng, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, warehouse.ID, warehouse.Name, warehouse.City, warehouse.Coords.Lat, warehouse.Coords.Lng, warehouse.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert warehouse: %w", err)
	}

	return nil
}

func (r *warehouseRepository) Get(id string) (domain.Warehouse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var warehouse domain.Warehouse
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, city, lat, lng, created_at
		FROM warehouses
		WHERE id = $1
	`, id).Scan(
		&warehouse.ID, &warehouse.Name, &warehouse.City,
		&warehouse.Coords.Lat, &warehouse.Coords.Lng, &warehouse.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Warehouse{}, domain.ErrWarehouseNotFound
		}
		return domain.Warehouse{}, fmt.Errorf("select warehouse: %w", err)
	}

	return warehouse, nil
}

func (r *warehouseRepository) List() ([]domain.Warehouse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, city, lat, lng, created_at
		FROM warehouses
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()

	warehouses := make([]domain.Warehouse, 0)
	for rows.Next() {
		var warehouse domain.Warehouse
		if err := rows.Scan(
			&warehouse.ID, &warehouse.Name, &warehouse.City,
			&warehouse.Coords.Lat, &warehouse.Coords.Lng, &warehouse.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan warehouse row: %w", err)
		}
		warehouses = append(warehouses, warehouse)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warehouse rows: %w", err)
	}

	return warehouses, nil
}

// NearestWithStock считает расстояние по формуле гаверсинусов прямо в SQL.
// Выражение обязано давать тот же результат, что и geo.DistanceKm: радиус
// 6371 км, округление до двух знаков.
func (r *warehouseRepository) NearestWithStock(productID string, dest domain.Coords, limit, offset int) ([]domain.NearestWarehouse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.city, w.lat, w.lng, w.created_at, i.quantity,
		       ROUND(CAST(2 * 6371.0 * ASIN(SQRT(
		           POWER(SIN(RADIANS(($2 - w.lat) / 2)), 2) +
		           COS(RADIANS(w.lat)) * COS(RADIANS($2)) *
		           POWER(SIN(RADIANS(($3 - w.lng) / 2)), 2)
		       )) AS numeric), 2) AS distance
		FROM warehouses w
		JOIN inventory i ON i.warehouse_id = w.id
		WHERE i.product_id = $1
		  AND i.quantity > 0
		ORDER BY distance ASC, w.id ASC
		LIMIT $4 OFFSET $5
	`, productID, dest.Lat, dest.Lng, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select nearest warehouses: %w", err)
	}
	defer rows.Close()

	result := make([]domain.NearestWarehouse, 0, limit)
	for rows.Next() {
		var nw domain.NearestWarehouse
		if err := rows.Scan(
			&nw.Warehouse.ID, &nw.Warehouse.Name, &nw.Warehouse.City,
			&nw.Warehouse.Coords.Lat, &nw.Warehouse.Coords.Lng, &nw.Warehouse.CreatedAt,
			&nw.Stock, &nw.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan nearest warehouse row: %w", err)
		}
		result = append(result, nw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest warehouse rows: %w", err)
	}

	return result, nil
}

var _ domain.WarehouseRepository = (*warehouseRepository)(nil)

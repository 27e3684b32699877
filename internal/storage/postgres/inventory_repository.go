package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Add(warehouseID, productID string, qty int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory (warehouse_id, product_id, quantity)
		VALUES ($1,$2,$3)
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity
	`, warehouseID, productID, qty)
	if err != nil {
		return fmt.Errorf("add inventory: %w", err)
	}

	return nil
}

func (r *inventoryRepository) Subtract(warehouseID, productID string, qty int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $3
		WHERE warehouse_id = $1
		  AND product_id = $2
		  AND quantity >= $3
	`, warehouseID, productID, qty)
	if err != nil {
		return fmt.Errorf("subtract inventory: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.Get(warehouseID, productID); err != nil {
			return err
		}
		return domain.ErrInsufficientStock
	}

	return nil
}

func (r *inventoryRepository) Get(warehouseID, productID string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var record domain.InventoryRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT warehouse_id, product_id, quantity
		FROM inventory
		WHERE warehouse_id = $1 AND product_id = $2
	`, warehouseID, productID).Scan(&record.WarehouseID, &record.ProductID, &record.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) ListByWarehouse(warehouseID string) ([]domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT warehouse_id, product_id, quantity
		FROM inventory
		WHERE warehouse_id = $1
		ORDER BY product_id ASC
	`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		var record domain.InventoryRecord
		if err := rows.Scan(&record.WarehouseID, &record.ProductID, &record.Quantity); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory rows: %w", err)
	}

	return records, nil
}

// CheckAllocation выполняет пробное списание и пробную вставку строк
// резервирования в транзакции и всегда её откатывает: база не меняется, но
// нарушения ограничений (внешние ключи, CHECK по количеству) всплывают уже
// на проверке, а не при финализации.
func (r *inventoryRepository) CheckAllocation(proposals []domain.AllocationProposal) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	pending := make([]domain.Allocation, 0, len(proposals))
	for _, p := range proposals {
		if err := subtractTx(ctx, tx, p.WarehouseID, p.ProductID, p.Quantity); err != nil {
			return err
		}
		pending = append(pending, domain.Allocation{
			ID:          uid.New(uid.PrefixAllocation),
			OrderID:     uid.New(uid.PrefixOrder),
			WarehouseID: p.WarehouseID,
			ProductID:   p.ProductID,
			Quantity:    p.Quantity,
			Distance:    p.Distance,
			Status:      domain.AllocationStatusPending,
		})
	}
	if err := insertAllocationsTx(ctx, tx, pending); err != nil {
		return err
	}

	return nil
}

func (r *inventoryRepository) CreateAllocations(allocations []domain.Allocation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertAllocationsTx(ctx, tx, allocations); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create allocations: %w", err)
	}

	return nil
}

// ConfirmAllocations списывает остатки по всем PENDING-строкам заказа и
// переводит их в CONFIRMED одной транзакцией. Строки блокируются FOR UPDATE,
// чтобы конкурирующее подтверждение того же заказа увидело ноль PENDING-строк.
func (r *inventoryRepository) ConfirmAllocations(orderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT warehouse_id, product_id, quantity
		FROM allocations
		WHERE order_id = $1 AND status = 'PENDING'
		ORDER BY id ASC
		FOR UPDATE
	`, orderID)
	if err != nil {
		return fmt.Errorf("lock pending allocations: %w", err)
	}

	type pendingRow struct {
		warehouseID string
		productID   string
		quantity    int64
	}
	pending := make([]pendingRow, 0)
	for rows.Next() {
		var row pendingRow
		if err = rows.Scan(&row.warehouseID, &row.productID, &row.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("scan pending allocation: %w", err)
		}
		pending = append(pending, row)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate pending allocations: %w", err)
	}
	rows.Close()

	if len(pending) == 0 {
		err = domain.ErrAllocationState
		return err
	}

	for _, row := range pending {
		if err = subtractTx(ctx, tx, row.warehouseID, row.productID, row.quantity); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE allocations
		SET status = 'CONFIRMED'
		WHERE order_id = $1 AND status = 'PENDING'
	`, orderID); err != nil {
		return fmt.Errorf("confirm allocations: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm allocations: %w", err)
	}

	return nil
}

// CancelAllocations возвращает остатки только по строкам CONFIRMED: PENDING
// ничего не списывал, возвращать нечего. Затем обе группы строк переводятся
// в CANCELLED.
func (r *inventoryRepository) CancelAllocations(orderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		UPDATE inventory i
		SET quantity = i.quantity + a.quantity
		FROM allocations a
		WHERE a.order_id = $1
		  AND a.status = 'CONFIRMED'
		  AND i.warehouse_id = a.warehouse_id
		  AND i.product_id = a.product_id
	`, orderID); err != nil {
		return fmt.Errorf("restore confirmed stock: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE allocations
		SET status = 'CANCELLED'
		WHERE order_id = $1 AND status IN ('PENDING','CONFIRMED')
	`, orderID)
	if err != nil {
		return fmt.Errorf("cancel allocations: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrAllocationState
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel allocations: %w", err)
	}

	return nil
}

func (r *inventoryRepository) ListAllocations(orderID string) ([]domain.Allocation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return loadAllocations(ctx, r.db, orderID)
}

func subtractTx(ctx context.Context, tx *sql.Tx, warehouseID, productID string, qty int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $3
		WHERE warehouse_id = $1
		  AND product_id = $2
		  AND quantity >= $3
	`, warehouseID, productID, qty)
	if err != nil {
		return fmt.Errorf("subtract inventory in tx: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrInsufficientStock
	}

	return nil
}

func insertAllocationsTx(ctx context.Context, tx *sql.Tx, allocations []domain.Allocation) error {
	for _, a := range allocations {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (id, order_id, warehouse_id, product_id, quantity, distance, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, a.ID, a.OrderID, a.WarehouseID, a.ProductID, a.Quantity, a.Distance, string(a.Status), a.CreatedAt); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	return nil
}

func loadAllocations(ctx context.Context, db *sql.DB, orderID string) ([]domain.Allocation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, order_id, warehouse_id, product_id, quantity, distance, status, created_at
		FROM allocations
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	allocations := make([]domain.Allocation, 0)
	for rows.Next() {
		var (
			a      domain.Allocation
			status string
		)
		if err := rows.Scan(&a.ID, &a.OrderID, &a.WarehouseID, &a.ProductID, &a.Quantity, &a.Distance, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation row: %w", err)
		}
		a.Status = domain.AllocationStatus(status)
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation rows: %w", err)
	}

	return allocations, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) CreateDraft(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if order.CreatedOn.IsZero() {
		order.CreatedOn = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, external_customer_id, address_id, agent_id, status,
			pricing_strategy, shipping_strategy, validation_strategy, created_on
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.ExternalCustomerID, order.AddressID, order.AgentID, string(order.Status),
		order.PricingStrategy, order.ShippingStrategy, order.ValidationStrategy, order.CreatedOn,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err = insertItemsTx(ctx, tx, order.ID, order.Items); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create draft: %w", err)
	}

	return nil
}

// UpdateDraft блокирует заголовок FOR UPDATE и проверяет статус до изменения:
// обновлять можно только черновик.
func (r *orderRepository) UpdateDraft(orderID string, patch domain.DraftPatch) error {
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

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("lock order for update: %w", err)
	}
	if domain.OrderStatus(status) != domain.OrderStatusDraft {
		err = domain.ErrOrderNotDraft
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET address_id = COALESCE($2, address_id),
		    agent_id = COALESCE($3, agent_id),
		    pricing_strategy = COALESCE($4, pricing_strategy),
		    shipping_strategy = COALESCE($5, shipping_strategy),
		    validation_strategy = COALESCE($6, validation_strategy)
		WHERE id = $1
	`, orderID, patch.AddressID, patch.AgentID,
		patch.PricingStrategy, patch.ShippingStrategy, patch.ValidationStrategy,
	); err != nil {
		return fmt.Errorf("update draft header: %w", err)
	}

	if patch.Items != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete draft items: %w", err)
		}
		if err = insertItemsTx(ctx, tx, orderID, patch.Items); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update draft: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := r.loadOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	allocations, err := loadAllocations(ctx, r.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Allocations = allocations

	return order, nil
}

func (r *orderRepository) ListByCustomer(externalCustomerID string) ([]domain.Order, error) {
	return r.listBy("external_customer_id", externalCustomerID)
}

func (r *orderRepository) ListByAddress(addressID string) ([]domain.Order, error) {
	return r.listBy("address_id", addressID)
}

func (r *orderRepository) ListByAgent(agentID string) ([]domain.Order, error) {
	return r.listBy("agent_id", agentID)
}

func (r *orderRepository) UpdateStatus(orderID string, from []domain.OrderStatus, to domain.OrderStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(from) == 0 {
		return domain.ErrOrderState
	}

	args := make([]any, 0, len(from)+2)
	args = append(args, orderID, string(to))
	placeholders := make([]string, 0, len(from))
	for i, status := range from {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, string(status))
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE orders
		SET status = $2
		WHERE id = $1
		  AND status IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderState
	}

	return nil
}

// Finalize выполняет переход DRAFT→PROCESSING, запись прайсинга, создание
// PENDING-строк резервирования и событие конвейера одной транзакцией: после
// сбоя заказ либо остаётся черновиком целиком, либо финализирован целиком.
func (r *orderRepository) Finalize(orderID string, pricing domain.OrderPricing, allocations []domain.Allocation, event domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pricingRaw, err := json.Marshal(pricing)
	if err != nil {
		return fmt.Errorf("encode pricing: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    pricing = $3
		WHERE id = $1
		  AND status = $4
	`, orderID, string(domain.OrderStatusProcessing), pricingRaw, string(domain.OrderStatusDraft))
	if err != nil {
		return fmt.Errorf("finalize order header: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, checkErr := r.orderExists(ctx, orderID)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !exists {
			err = domain.ErrOrderNotFound
			return err
		}
		err = domain.ErrOrderState
		return err
	}

	if err = insertAllocationsTx(ctx, tx, allocations); err != nil {
		return err
	}

	if event.CreatedOn.IsZero() {
		event.CreatedOn = time.Now().UTC()
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, event_type, payload, status, created_on)
		VALUES ($1,$2,$3,$4,$5)
	`, event.ID, string(event.Type), event.Payload, string(event.Status), event.CreatedOn); err != nil {
		return fmt.Errorf("insert finalize event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize order: %w", err)
	}

	return nil
}

func (r *orderRepository) listBy(column, value string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, external_customer_id, address_id, agent_id, status, pricing,
		       pricing_strategy, shipping_strategy, validation_strategy, created_on
		FROM orders
		WHERE %s = $1
		ORDER BY created_on DESC, id DESC
	`, column), value)
	if err != nil {
		return nil, fmt.Errorf("list orders by %s: %w", column, err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) loadOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_customer_id, address_id, agent_id, status, pricing,
		       pricing_strategy, shipping_strategy, validation_strategy, created_on
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order      domain.Order
		status     string
		pricingRaw []byte
	)
	if err := row.Scan(
		&order.ID, &order.ExternalCustomerID, &order.AddressID, &order.AgentID,
		&status, &pricingRaw,
		&order.PricingStrategy, &order.ShippingStrategy, &order.ValidationStrategy,
		&order.CreatedOn,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	if len(pricingRaw) > 0 {
		var pricing domain.OrderPricing
		if err := json.Unmarshal(pricingRaw, &pricing); err != nil {
			return domain.Order{}, fmt.Errorf("decode order pricing: %w", err)
		}
		order.Pricing = &pricing
	}

	return order, nil
}

func insertItemsTx(ctx context.Context, tx *sql.Tx, orderID string, items []domain.OrderItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity)
			VALUES ($1,$2,$3)
		`, orderID, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)

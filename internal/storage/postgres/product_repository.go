package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
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
		INSERT INTO products (id, name, created_at)
		VALUES ($1,$2,$3)
	`, product.ID, product.Name, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateProductName
		}
		return fmt.Errorf("insert product: %w", err)
	}

	if err = insertAttributesTx(ctx, tx, product.ID, product.Attributes); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create product: %w", err)
	}

	return nil
}

func (r *productRepository) UpsertAttributes(productID string, attrs []domain.ProductAttribute) error {
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

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, productID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("check product exists: %w", err)
	}

	// Ключ совпадения — (product_id, name): свойство либо обновляется на
	// месте, либо добавляется; остальные строки товара не трогаются.
	for _, attr := range attrs {
		var metaRaw []byte
		if attr.Meta != nil {
			raw, marshalErr := json.Marshal(attr.Meta)
			if marshalErr != nil {
				err = fmt.Errorf("encode attribute meta: %w", marshalErr)
				return err
			}
			metaRaw = raw
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO product_attributes (id, product_id, name, value, meta)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (product_id, name)
			DO UPDATE SET value = EXCLUDED.value, meta = EXCLUDED.meta
		`, attr.ID, productID, attr.Name, attr.Value, metaRaw); err != nil {
			return fmt.Errorf("upsert product attribute: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert attributes: %w", err)
	}

	return nil
}

func (r *productRepository) Get(idOrName string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM products
		WHERE id = $1 OR name = $1
	`, idOrName).Scan(&product.ID, &product.Name, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	attrs, err := r.loadAttributes(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.Attributes = attrs

	return product, nil
}

func (r *productRepository) List() ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM products
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	for i := range products {
		attrs, err := r.loadAttributes(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Attributes = attrs
	}

	return products, nil
}

func (r *productRepository) loadAttributes(ctx context.Context, productID string) ([]domain.ProductAttribute, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, name, value, meta
		FROM product_attributes
		WHERE product_id = $1
		ORDER BY name ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("load product attributes: %w", err)
	}
	defer rows.Close()

	attrs := make([]domain.ProductAttribute, 0)
	for rows.Next() {
		var (
			attr    domain.ProductAttribute
			value   sql.NullString
			metaRaw []byte
		)
		if err := rows.Scan(&attr.ID, &attr.ProductID, &attr.Name, &value, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan product attribute: %w", err)
		}
		if value.Valid {
			attr.Value = &value.String
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &attr.Meta); err != nil {
				return nil, fmt.Errorf("decode attribute meta: %w", err)
			}
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product attributes: %w", err)
	}

	return attrs, nil
}

func insertAttributesTx(ctx context.Context, tx *sql.Tx, productID string, attrs []domain.ProductAttribute) error {
	for _, attr := range attrs {
		var metaRaw []byte
		if attr.Meta != nil {
			raw, err := json.Marshal(attr.Meta)
			if err != nil {
				return fmt.Errorf("encode attribute meta: %w", err)
			}
			metaRaw = raw
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_attributes (id, product_id, name, value, meta)
			VALUES ($1,$2,$3,$4,$5)
		`, attr.ID, productID, attr.Name, attr.Value, metaRaw); err != nil {
			return fmt.Errorf("insert product attribute: %w", err)
		}
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)

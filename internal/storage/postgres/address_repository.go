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

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository создаёт PostgreSQL-реализацию AddressRepository.
func NewAddressRepository(store *Store) domain.AddressRepository {
	return &addressRepository{db: store.DB()}
}

func (r *addressRepository) Create(address domain.Address) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}

	var metaRaw []byte
	if address.Meta != nil {
		raw, err := json.Marshal(address.Meta)
		if err != nil {
			return fmt.Errorf("encode address meta: %w", err)
		}
		metaRaw = raw
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, external_customer_id, lat, lng, meta, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, address.ID, address.ExternalCustomerID, address.Coords.Lat, address.Coords.Lng, metaRaw, address.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert address: %w", err)
	}

	return nil
}

func (r *addressRepository) Get(id string) (domain.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	address, err := scanAddress(r.db.QueryRowContext(ctx, `
		SELECT id, external_customer_id, lat, lng, meta, created_at
		FROM addresses
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}

	return address, nil
}

func (r *addressRepository) ListByCustomer(externalCustomerID string) ([]domain.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, external_customer_id, lat, lng, meta, created_at
		FROM addresses
		WHERE external_customer_id = $1
		ORDER BY created_at ASC, id ASC
	`, externalCustomerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}

	return addresses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (domain.Address, error) {
	var (
		address domain.Address
		metaRaw []byte
	)
	if err := row.Scan(
		&address.ID, &address.ExternalCustomerID,
		&address.Coords.Lat, &address.Coords.Lng,
		&metaRaw, &address.CreatedAt,
	); err != nil {
		return domain.Address{}, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &address.Meta); err != nil {
			return domain.Address{}, fmt.Errorf("decode address meta: %w", err)
		}
	}
	return address, nil
}

var _ domain.AddressRepository = (*addressRepository)(nil)

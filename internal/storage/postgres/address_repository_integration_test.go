package postgres

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

func TestAddressRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewAddressRepository(store)

	address := seedAddress(t, store, "customer-1", 55.75, 37.61)
	seedAddress(t, store, "customer-1", 59.93, 30.33)
	seedAddress(t, store, "customer-2", 54.70, 20.45)

	got, err := repo.Get(address.ID)
	if err != nil {
		t.Fatalf("get address: %v", err)
	}
	if got.ExternalCustomerID != "customer-1" || got.Coords.Lat != 55.75 {
		t.Fatalf("unexpected address: %+v", got)
	}

	list, err := repo.ListByCustomer("customer-1")
	if err != nil {
		t.Fatalf("list addresses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 addresses for customer-1, got %d", len(list))
	}

	if _, err := repo.Get("adr_missing"); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

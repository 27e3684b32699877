package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

// AddressRepository — in-memory хранилище адресов доставки.
type AddressRepository struct {
	mu        sync.RWMutex
	addresses map[string]domain.Address
}

// NewAddressRepository создаёт in-memory реализацию AddressRepository.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{addresses: make(map[string]domain.Address)}
}

func (r *AddressRepository) Create(address domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addresses[address.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}
	r.addresses[address.ID] = cloneAddress(address)
	return nil
}

func (r *AddressRepository) Get(id string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address, ok := r.addresses[id]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return cloneAddress(address), nil
}

func (r *AddressRepository) ListByCustomer(externalCustomerID string) ([]domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Address, 0)
	for _, a := range r.addresses {
		if a.ExternalCustomerID == externalCustomerID {
			result = append(result, cloneAddress(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func cloneAddress(a domain.Address) domain.Address {
	if a.Meta != nil {
		meta := make(map[string]any, len(a.Meta))
		for k, v := range a.Meta {
			meta[k] = v
		}
		a.Meta = meta
	}
	return a
}

var _ domain.AddressRepository = (*AddressRepository)(nil)

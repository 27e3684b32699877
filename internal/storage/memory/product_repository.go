package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
)

// ProductRepository — in-memory хранилище каталога (для разработки/тестов).
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	byName   map[string]string
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]domain.Product),
		byName:   make(map[string]string),
	}
}

func (r *ProductRepository) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[product.Name]; ok {
		return domain.ErrDuplicateProductName
	}
	if _, ok := r.products[product.ID]; ok {
		return domain.ErrAlreadyExists
	}

	r.products[product.ID] = cloneProduct(product)
	r.byName[product.Name] = product.ID
	return nil
}

func (r *ProductRepository) UpsertAttributes(productID string, attrs []domain.ProductAttribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}

	// Совпадение по имени: обновление на месте, новые имена — в конец.
	merged := append([]domain.ProductAttribute(nil), product.Attributes...)
	for _, attr := range attrs {
		replaced := false
		for i := range merged {
			if merged[i].Name == attr.Name {
				merged[i].Value = attr.Value
				merged[i].Meta = attr.Meta
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, attr)
		}
	}
	product.Attributes = merged
	r.products[productID] = product
	return nil
}

func (r *ProductRepository) Get(idOrName string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if product, ok := r.products[idOrName]; ok {
		return cloneProduct(product), nil
	}
	if id, ok := r.byName[idOrName]; ok {
		return cloneProduct(r.products[id]), nil
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (r *ProductRepository) List() ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.products))
	for _, product := range r.products {
		result = append(result, cloneProduct(product))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func cloneProduct(product domain.Product) domain.Product {
	clone := product
	clone.Attributes = append([]domain.ProductAttribute(nil), product.Attributes...)
	return clone
}

var _ domain.ProductRepository = (*ProductRepository)(nil)

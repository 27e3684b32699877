package crm

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/scoms/internal/domain"
	"github.com/vladislavdragonenkov/scoms/internal/uid"
)

// Service хранит адреса доставки клиентов. Клиенты живут во внешней CRM,
// здесь остаётся только внешний идентификатор.
type Service struct {
	addresses domain.AddressRepository
	logger    *log.Entry
}

// NewService создаёт сервис адресов.
func NewService(addresses domain.AddressRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "crm")
	}
	return &Service{addresses: addresses, logger: logger}
}

// CreateAddress регистрирует адрес доставки клиента.
func (s *Service) CreateAddress(externalCustomerID string, coords domain.Coords, meta map[string]any) (domain.Address, error) {
	address := domain.Address{
		ID:                 uid.New(uid.PrefixAddress),
		ExternalCustomerID: externalCustomerID,
		Coords:             coords,
		Meta:               meta,
	}
	if errs := address.Validate(); len(errs) > 0 {
		return domain.Address{}, errs[0]
	}
	if err := s.addresses.Create(address); err != nil {
		return domain.Address{}, err
	}
	s.logger.WithFields(log.Fields{
		"address_id":  address.ID,
		"customer_id": externalCustomerID,
	}).Info("address created")
	return address, nil
}

// GetAddress возвращает адрес по идентификатору.
func (s *Service) GetAddress(id string) (domain.Address, error) {
	return s.addresses.Get(id)
}

// ListAddressesByCustomer возвращает адреса клиента.
func (s *Service) ListAddressesByCustomer(externalCustomerID string) ([]domain.Address, error) {
	return s.addresses.ListByCustomer(externalCustomerID)
}

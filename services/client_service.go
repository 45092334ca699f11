package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/entities"
)

// ClientService manages the client directory.
type ClientService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewClientService(db *gorm.DB, logger zerolog.Logger) *ClientService {
	return &ClientService{
		db:  db,
		log: logger.With().Str("component", "client-service").Logger(),
	}
}

// CreateClient validates, normalises and stores a new client. A duplicate
// NIP is a CONFLICT.
func (s *ClientService) CreateClient(ctx context.Context, req *entities.CreateClientRequest) (*entities.Client, error) {
	client, err := req.ToClient()
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Client{}).Where("nip = ?", client.NIP).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.KindIO, "failed to check NIP uniqueness", err)
		}
		if count > 0 {
			return apperrors.Newf(apperrors.KindConflict, "a client with NIP %s already exists", client.NIP)
		}
		if err := tx.Create(client).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Newf(apperrors.KindConflict, "a client with NIP %s already exists", client.NIP)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to create client", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("client_id", client.ID).Str("nip", client.NIP).Msg("client created")
	return client, nil
}

// GetClient loads a client by id.
func (s *ClientService) GetClient(ctx context.Context, id uint) (*entities.Client, error) {
	var client entities.Client
	if err := s.db.WithContext(ctx).First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("client", id)
		}
		return nil, apperrors.Wrap(apperrors.KindIO, "failed to load client", err)
	}
	return &client, nil
}

// ListClients returns all clients ordered by name. A non-empty search
// narrows by name or NIP substring.
func (s *ClientService) ListClients(ctx context.Context, search string) ([]entities.Client, error) {
	query := s.db.WithContext(ctx).Model(&entities.Client{}).Order("name, id")
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR nip LIKE ?", like, like)
	}
	var clients []entities.Client
	if err := query.Find(&clients).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindIO, "failed to list clients", err)
	}
	return clients, nil
}

// UpdateClient merges the non-nil request fields into the stored client.
func (s *ClientService) UpdateClient(ctx context.Context, id uint, req *entities.UpdateClientRequest) (*entities.Client, error) {
	var client entities.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&client, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("client", id)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to load client", err)
		}

		if req.Name != nil {
			name, err := entities.TrimRequired("name", *req.Name, entities.MaxNameLength)
			if err != nil {
				return err
			}
			client.Name = name
		}
		if req.NIP != nil {
			nip, err := entities.NormalizeNIP(*req.NIP)
			if err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&entities.Client{}).Where("nip = ? AND id <> ?", nip, id).Count(&count).Error; err != nil {
				return apperrors.Wrap(apperrors.KindIO, "failed to check NIP uniqueness", err)
			}
			if count > 0 {
				return apperrors.Newf(apperrors.KindConflict, "a client with NIP %s already exists", nip)
			}
			client.NIP = nip
		}
		if req.Address != nil {
			address, err := entities.TrimOptional("address", *req.Address, entities.MaxNameLength)
			if err != nil {
				return err
			}
			client.Address = address
		}
		if req.City != nil {
			city, err := entities.TrimOptional("city", *req.City, 128)
			if err != nil {
				return err
			}
			client.City = city
		}
		if req.PostalCode != nil {
			postalCode, err := entities.TrimOptional("postal_code", *req.PostalCode, 16)
			if err != nil {
				return err
			}
			client.PostalCode = postalCode
		}
		if req.Email != nil {
			email, err := entities.TrimOptional("email", *req.Email, entities.MaxNameLength)
			if err != nil {
				return err
			}
			if err := entities.ValidateEmail(email); err != nil {
				return err
			}
			client.Email = email
		}
		if req.Phone != nil {
			phone, err := entities.TrimOptional("phone", *req.Phone, 64)
			if err != nil {
				return err
			}
			client.Phone = phone
		}

		if err := tx.Save(&client).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Newf(apperrors.KindConflict, "a client with NIP %s already exists", client.NIP)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to update client", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// DeleteClient removes a client that no invoice references.
func (s *ClientService) DeleteClient(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entities.Invoice{}).Where("client_id = ?", id).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.KindIO, "failed to check client references", err)
		}
		if count > 0 {
			return apperrors.Newf(apperrors.KindReferenceInUse, "client %d is referenced by %d invoice(s)", id, count)
		}
		result := tx.Delete(&entities.Client{}, id)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
				return apperrors.Newf(apperrors.KindReferenceInUse, "client %d is referenced by invoices", id)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to delete client", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("client", id)
		}
		return nil
	})
}

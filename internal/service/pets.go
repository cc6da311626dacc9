package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/validation"
)

// MaxProvisionBatch - максимальное число карточек, создаваемых за один запрос.
const MaxProvisionBatch = 100

// ProvisionPets создаёт count пустых карточек питомцев с уникальными QR-токенами.
func (s *Service) ProvisionPets(ctx context.Context, count int) ([]model.Pet, error) {
	if count < 1 || count > MaxProvisionBatch {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", model.ErrInvalidInput, MaxProvisionBatch)
	}

	now := s.now()
	pets := make([]model.Pet, 0, count)

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		for i := 0; i < count; i++ {
			id := uuid.NewString()
			p := model.Pet{
				ID:        id,
				QRToken:   strings.ReplaceAll(uuid.NewString(), "-", ""),
				QRCodeURL: s.editURL(id),
				Status:    model.PetStatusUnused,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.store.CreatePet(ctx, p); err != nil {
				return fmt.Errorf("create pet: %w", err)
			}
			pets = append(pets, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pets provisioned", zap.Int("count", len(pets)))
	return pets, nil
}

func (s *Service) editURL(id string) string {
	return strings.TrimRight(s.baseURL, "/") + "/user/edit/" + id
}

// GetPet возвращает карточку питомца и запоминает момент её открытия.
func (s *Service) GetPet(ctx context.Context, id string) (*model.Pet, error) {
	p, err := s.store.GetPet(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	at := s.now()
	if err := s.store.TouchPetScan(ctx, id, at); err != nil {
		s.logger.Warn("failed to record pet scan", zap.String("pet_id", id), zap.Error(err))
	} else {
		p.LastScannedAt = &at
	}
	return p, nil
}

// ListPets возвращает все карточки питомцев.
func (s *Service) ListPets(ctx context.Context) ([]model.Pet, error) {
	return s.store.ListPets(ctx)
}

// UpdatePetProfile сохраняет профиль, заполненный владельцем.
func (s *Service) UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile) (*model.Pet, error) {
	profile.Owner.Email = validation.NormalizeEmail(profile.Owner.Email)
	if profile.Owner.Email != "" && !validation.IsValidEmail(profile.Owner.Email) {
		return nil, fmt.Errorf("%w: owner email", model.ErrInvalidInput)
	}
	profile.Info.Name = strings.TrimSpace(profile.Info.Name)
	profile.Owner.Name = strings.TrimSpace(profile.Owner.Name)
	profile.Owner.Phone = strings.TrimSpace(profile.Owner.Phone)

	p, err := s.store.UpdatePetProfile(ctx, id, profile, s.now())
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

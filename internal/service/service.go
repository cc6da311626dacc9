// Package service реализует бизнес-логику сервиса pettag: карточки питомцев, каталог тем,
// покупки и активацию кодов.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
)

// Store описывает контракт хранилища, используемый сервисом.
type Store interface {
	Close() error
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreatePet(ctx context.Context, p model.Pet) error
	GetPet(ctx context.Context, id string) (*model.Pet, error)
	ListPets(ctx context.Context) ([]model.Pet, error)
	UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile, now time.Time) (*model.Pet, error)
	TouchPetScan(ctx context.Context, id string, at time.Time) error
	AssignTheme(ctx context.Context, petID string, themeID *string) error

	CreateTheme(ctx context.Context, t model.Theme) error
	UpdateTheme(ctx context.Context, t model.Theme) error
	GetTheme(ctx context.Context, id string) (*model.Theme, error)
	ListThemes(ctx context.Context, f repository.ThemeFilter) ([]model.Theme, error)

	CreatePurchase(ctx context.Context, p model.Purchase) error
	FindPurchase(ctx context.Context, acq model.Acquirer, themeID string) (*model.Purchase, error)
	ListPurchases(ctx context.Context, acq model.Acquirer) ([]model.Purchase, error)

	CreateRedemptionCode(ctx context.Context, c model.RedemptionCode) error
	FindRedemptionCode(ctx context.Context, code string) (*model.RedemptionCode, error)
	UpdateRedemptionCodeStatus(ctx context.Context, id string, tr model.CodeTransition) error
	ListRedemptionCodesByCreator(ctx context.Context, userID string) ([]model.RedemptionCode, error)
	ListRedemptionsByPet(ctx context.Context, petID string) ([]model.RedemptionCode, error)

	CreateStoreUser(ctx context.Context, u model.StoreUser) error
	GetStoreUserByEmail(ctx context.Context, email string) (*model.StoreUser, error)
	GetStoreUser(ctx context.Context, id string) (*model.StoreUser, error)
}

// DefaultCodeValidityMonths - срок действия кода активации по умолчанию в календарных месяцах.
const DefaultCodeValidityMonths = 6

// Config содержит параметры сервиса.
type Config struct {
	// BaseURL используется для формирования ссылки редактирования карточки в QR-коде.
	BaseURL string
	// CodeTTL переопределяет срок действия кода. Ноль означает DefaultCodeValidityMonths.
	CodeTTL time.Duration
}

// Service содержит бизнес-логику сервиса pettag.
type Service struct {
	store   Store
	baseURL string
	codeTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewService создаёт сервис поверх указанного хранилища.
func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CodeTTL
	if ttl < 0 {
		ttl = 0
	}
	return &Service{
		store:   store,
		baseURL: cfg.BaseURL,
		codeTTL: ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return model.ErrNotFound
	}
	return err
}

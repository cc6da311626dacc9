package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
	"github.com/mmeshcher/pettag/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 6

// StorePurchase описывает покупку пользователя магазина вместе с выпущенными кодами.
type StorePurchase struct {
	Purchase model.Purchase         `json:"purchase"`
	Theme    *model.Theme           `json:"theme,omitempty"`
	Codes    []model.RedemptionCode `json:"codes"`
}

// RegisterStoreUser регистрирует пользователя магазина.
func (s *Service) RegisterStoreUser(ctx context.Context, name, email, password string) (*model.StoreUser, error) {
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: email", model.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := model.StoreUser{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateStoreUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		return nil, err
	}
	return &u, nil
}

// AuthenticateStoreUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateStoreUser(ctx context.Context, email, password string) (*model.StoreUser, error) {
	u, err := s.store.GetStoreUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// PurchaseForStoreUser покупает тему пользователем магазина и выпускает код активации.
func (s *Service) PurchaseForStoreUser(ctx context.Context, userID, themeID string) (*PurchaseResult, error) {
	if _, err := s.store.GetStoreUser(ctx, userID); err != nil {
		return nil, notFound(err)
	}
	return s.Purchase(ctx, model.StoreUserAcquirer(userID), themeID, true)
}

// PurchaseForPet покупает тему напрямую для питомца.
func (s *Service) PurchaseForPet(ctx context.Context, petID, themeID string) (*PurchaseResult, error) {
	if _, err := s.store.GetPet(ctx, petID); err != nil {
		return nil, notFound(err)
	}
	return s.Purchase(ctx, model.PetAcquirer(petID), themeID, false)
}

// StorePurchases возвращает покупки пользователя магазина с выпущенными по ним кодами.
func (s *Service) StorePurchases(ctx context.Context, userID string) ([]StorePurchase, error) {
	purchases, err := s.store.ListPurchases(ctx, model.StoreUserAcquirer(userID))
	if err != nil {
		return nil, err
	}
	codes, err := s.store.ListRedemptionCodesByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}

	byTheme := make(map[string][]model.RedemptionCode)
	for _, c := range codes {
		byTheme[c.ThemeID] = append(byTheme[c.ThemeID], c)
	}

	out := make([]StorePurchase, 0, len(purchases))
	for _, p := range purchases {
		sp := StorePurchase{Purchase: p, Codes: byTheme[p.ThemeID]}
		if sp.Codes == nil {
			sp.Codes = []model.RedemptionCode{}
		}
		t, err := s.store.GetTheme(ctx, p.ThemeID)
		switch {
		case err == nil:
			sp.Theme = t
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

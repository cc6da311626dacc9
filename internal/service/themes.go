package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
)

// ThemePatch описывает пакетное изменение флага активности и порядка темы.
type ThemePatch struct {
	ID       string
	IsActive *bool
	Order    *int
}

// PurchasedTheme связывает покупку с темой.
type PurchasedTheme struct {
	Purchase model.Purchase `json:"purchase"`
	Theme    model.Theme    `json:"theme"`
}

func normalizeTheme(t *model.Theme) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: theme name is required", model.ErrInvalidInput)
	}
	t.PresetKey = strings.ToLower(strings.TrimSpace(t.PresetKey))
	if err := t.NormalizePrice(); err != nil {
		return fmt.Errorf("%w: theme price must be non-negative with at most %d decimal places", err, model.PriceScale)
	}
	return nil
}

// CreateTheme добавляет тему в каталог.
func (s *Service) CreateTheme(ctx context.Context, t model.Theme) (*model.Theme, error) {
	if err := normalizeTheme(&t); err != nil {
		return nil, err
	}

	now := s.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := s.store.CreateTheme(ctx, t); err != nil {
		return nil, fmt.Errorf("create theme: %w", err)
	}
	return &t, nil
}

// UpdateTheme перезаписывает атрибуты существующей темы. Уже совершённые покупки не меняются.
func (s *Service) UpdateTheme(ctx context.Context, t model.Theme) (*model.Theme, error) {
	if err := normalizeTheme(&t); err != nil {
		return nil, err
	}

	current, err := s.store.GetTheme(ctx, t.ID)
	if err != nil {
		return nil, notFound(err)
	}
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = s.now()

	if err := s.store.UpdateTheme(ctx, t); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// BatchUpdateThemes применяет изменения активности и порядка к нескольким темам атомарно.
func (s *Service) BatchUpdateThemes(ctx context.Context, patches []ThemePatch) error {
	now := s.now()
	return s.store.InTx(ctx, func(ctx context.Context) error {
		for _, p := range patches {
			t, err := s.store.GetTheme(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("theme %s: %w", p.ID, notFound(err))
			}
			if p.IsActive != nil {
				t.IsActive = *p.IsActive
			}
			if p.Order != nil {
				t.Order = *p.Order
			}
			t.UpdatedAt = now
			if err := s.store.UpdateTheme(ctx, *t); err != nil {
				return fmt.Errorf("theme %s: %w", p.ID, notFound(err))
			}
		}
		return nil
	})
}

// ListThemes возвращает весь каталог тем.
func (s *Service) ListThemes(ctx context.Context) ([]model.Theme, error) {
	return s.store.ListThemes(ctx, repository.ThemeFilter{})
}

// StoreThemes возвращает темы, доступные для покупки в магазине.
func (s *Service) StoreThemes(ctx context.Context) ([]model.Theme, error) {
	return s.store.ListThemes(ctx, repository.ThemeFilter{OnlyActive: true, OnlyInStore: true})
}

// ActiveThemesForPet возвращает темы, которые питомец может применить: активные бесплатные
// и активные купленные.
func (s *Service) ActiveThemesForPet(ctx context.Context, petID string) ([]model.Theme, error) {
	if _, err := s.store.GetPet(ctx, petID); err != nil {
		return nil, notFound(err)
	}

	free, err := s.store.ListThemes(ctx, repository.ThemeFilter{OnlyActive: true, OnlyFree: true})
	if err != nil {
		return nil, err
	}

	purchased, err := s.PurchasedThemes(ctx, petID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(free)+len(purchased))
	out := make([]model.Theme, 0, len(free)+len(purchased))
	for _, t := range free {
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	for _, pt := range purchased {
		if _, ok := seen[pt.Theme.ID]; ok || !pt.Theme.IsActive {
			continue
		}
		seen[pt.Theme.ID] = struct{}{}
		out = append(out, pt.Theme)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// PurchasedThemes возвращает темы, купленные питомцем или полученные по коду.
// Покупки удалённых тем пропускаются.
func (s *Service) PurchasedThemes(ctx context.Context, petID string) ([]PurchasedTheme, error) {
	purchases, err := s.store.ListPurchases(ctx, model.PetAcquirer(petID))
	if err != nil {
		return nil, err
	}

	out := make([]PurchasedTheme, 0, len(purchases))
	for _, p := range purchases {
		t, err := s.store.GetTheme(ctx, p.ThemeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, PurchasedTheme{Purchase: p, Theme: *t})
	}
	return out, nil
}

// ApplyTheme устанавливает активную тему питомца. themeID == nil сбрасывает выбор.
func (s *Service) ApplyTheme(ctx context.Context, petID string, themeID *string) error {
	if _, err := s.store.GetPet(ctx, petID); err != nil {
		return notFound(err)
	}

	if themeID == nil {
		return notFound(s.store.AssignTheme(ctx, petID, nil))
	}

	t, err := s.store.GetTheme(ctx, *themeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: theme %s not found", model.ErrUnavailable, *themeID)
		}
		return err
	}
	if !t.IsActive {
		return fmt.Errorf("%w: theme %s is not active", model.ErrUnavailable, t.ID)
	}

	if t.IsPremium {
		if _, err := s.store.FindPurchase(ctx, model.PetAcquirer(petID), t.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: theme %s is not purchased", model.ErrForbidden, t.ID)
			}
			return err
		}
	}

	return notFound(s.store.AssignTheme(ctx, petID, &t.ID))
}

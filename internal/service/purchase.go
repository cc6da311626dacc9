package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
	"github.com/mmeshcher/pettag/internal/validation"
)

// PurchaseResult содержит созданную покупку и, для пользователей магазина, выпущенный код.
type PurchaseResult struct {
	Purchase model.Purchase        `json:"purchase"`
	Code     *model.RedemptionCode `json:"code,omitempty"`
}

// CodeInfo описывает код, пригодный к активации.
type CodeInfo struct {
	Code  model.RedemptionCode `json:"code"`
	Theme model.Theme          `json:"theme"`
}

// RedeemResult содержит итог активации кода.
type RedeemResult struct {
	Code  model.RedemptionCode `json:"code"`
	Theme model.Theme          `json:"theme"`
}

// Purchase выдаёт тему покупателю. Повторная покупка отклоняется хранилищем и возвращает
// ErrConflict. При mintCode в той же транзакции выпускается код активации.
func (s *Service) Purchase(ctx context.Context, acq model.Acquirer, themeID string, mintCode bool) (*PurchaseResult, error) {
	theme, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		return nil, notFound(err)
	}
	if !theme.ForSale() {
		return nil, fmt.Errorf("%w: theme %s is not for sale", model.ErrUnavailable, theme.ID)
	}

	now := s.now()
	res := &PurchaseResult{
		Purchase: model.Purchase{
			ID:            uuid.NewString(),
			Acquirer:      acq,
			ThemeID:       theme.ID,
			PurchasedAt:   now,
			TransactionID: uuid.NewString(),
			Amount:        theme.Price,
			Status:        model.PurchaseStatusCompleted,
		},
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreatePurchase(ctx, res.Purchase); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: theme %s already owned", model.ErrConflict, theme.ID)
			}
			return fmt.Errorf("create purchase: %w", err)
		}

		if !mintCode {
			return nil
		}

		code, err := newRedemptionCode()
		if err != nil {
			return err
		}
		c := model.RedemptionCode{
			ID:        uuid.NewString(),
			Code:      code,
			ThemeID:   theme.ID,
			CreatedBy: acq.ID,
			Status:    model.CodeStatusActive,
			ExpiresAt: s.codeExpiresAt(now),
			CreatedAt: now,
		}
		if err := s.store.CreateRedemptionCode(ctx, c); err != nil {
			return fmt.Errorf("create redemption code: %w", err)
		}
		res.Code = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("theme purchased",
		zap.String("acquirer_kind", string(acq.Kind)),
		zap.String("acquirer_id", acq.ID),
		zap.String("theme_id", theme.ID),
		zap.Bool("code_minted", res.Code != nil),
	)
	return res, nil
}

// codeExpiresAt возвращает момент истечения кода, выпущенного в now.
func (s *Service) codeExpiresAt(now time.Time) time.Time {
	if s.codeTTL > 0 {
		return now.Add(s.codeTTL)
	}
	return now.AddDate(0, DefaultCodeValidityMonths, 0)
}

func newRedemptionCode() (string, error) {
	b := make([]byte, validation.CodeLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// lookupCode находит код и проверяет, что его ещё можно активировать.
// Активный код с истёкшим сроком переводится в expired, если persist выставлен.
func (s *Service) lookupCode(ctx context.Context, raw string, persist bool) (*model.RedemptionCode, error) {
	code, ok := validation.NormalizeCode(raw)
	if !ok {
		return nil, fmt.Errorf("%w: redemption code", model.ErrNotFound)
	}

	c, err := s.store.FindRedemptionCode(ctx, code)
	if err != nil {
		return nil, notFound(err)
	}

	switch c.Status {
	case model.CodeStatusRedeemed:
		return nil, fmt.Errorf("%w: code already redeemed", model.ErrConflict)
	case model.CodeStatusExpired:
		return nil, fmt.Errorf("%w: code expired", model.ErrExpired)
	}

	if c.PastExpiry(s.now()) {
		if persist {
			err := s.store.UpdateRedemptionCodeStatus(ctx, c.ID, model.CodeTransition{To: model.CodeStatusExpired})
			if err != nil && !errors.Is(err, repository.ErrStaleState) {
				s.logger.Warn("failed to expire redemption code", zap.String("code_id", c.ID), zap.Error(err))
			}
		}
		return nil, fmt.Errorf("%w: code expired", model.ErrExpired)
	}
	return c, nil
}

func (s *Service) redeemableTheme(ctx context.Context, themeID string) (*model.Theme, error) {
	t, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: theme %s not found", model.ErrUnavailable, themeID)
		}
		return nil, err
	}
	if !t.IsActive {
		return nil, fmt.Errorf("%w: theme %s is not active", model.ErrUnavailable, t.ID)
	}
	return t, nil
}

// ValidateCode проверяет код без изменения состояния.
func (s *Service) ValidateCode(ctx context.Context, raw string) (*CodeInfo, error) {
	c, err := s.lookupCode(ctx, raw, false)
	if err != nil {
		return nil, err
	}
	t, err := s.redeemableTheme(ctx, c.ThemeID)
	if err != nil {
		return nil, err
	}
	return &CodeInfo{Code: *c, Theme: *t}, nil
}

// Redeem активирует код для питомца: код погашается, питомец получает тему во владение
// и она становится активной. Код активируется не более одного раза.
func (s *Service) Redeem(ctx context.Context, raw string, petID string) (*RedeemResult, error) {
	c, err := s.lookupCode(ctx, raw, true)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetPet(ctx, petID); err != nil {
		return nil, notFound(err)
	}

	theme, err := s.redeemableTheme(ctx, c.ThemeID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		err := s.store.UpdateRedemptionCodeStatus(ctx, c.ID, model.CodeTransition{
			To:         model.CodeStatusRedeemed,
			RedeemedBy: &petID,
			RedeemedAt: &now,
		})
		if err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return fmt.Errorf("%w: code already redeemed", model.ErrConflict)
			}
			return fmt.Errorf("redeem code: %w", err)
		}

		acq := model.PetAcquirer(petID)
		_, err = s.store.FindPurchase(ctx, acq, theme.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			p := model.Purchase{
				ID:            uuid.NewString(),
				Acquirer:      acq,
				ThemeID:       theme.ID,
				PurchasedAt:   now,
				TransactionID: "REDEEM-" + c.Code,
				Amount:        theme.Price,
				Status:        model.PurchaseStatusCompleted,
			}
			// Дубликат означает параллельную покупку той же темы. Транзакция откатывается
			// целиком, код остаётся активным и активацию можно повторить.
			if err := s.store.CreatePurchase(ctx, p); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return fmt.Errorf("%w: theme %s is being purchased concurrently, retry", model.ErrConflict, theme.ID)
				}
				return fmt.Errorf("create purchase: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find purchase: %w", err)
		}

		if err := s.store.AssignTheme(ctx, petID, &theme.ID); err != nil {
			return fmt.Errorf("assign theme: %w", notFound(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Status = model.CodeStatusRedeemed
	c.RedeemedBy = &petID
	c.RedeemedAt = &now

	s.logger.Info("redemption code redeemed",
		zap.String("code_id", c.ID),
		zap.String("pet_id", petID),
		zap.String("theme_id", theme.ID),
	)
	return &RedeemResult{Code: *c, Theme: *theme}, nil
}

// RedemptionHistory возвращает коды, активированные питомцем.
func (s *Service) RedemptionHistory(ctx context.Context, petID string) ([]model.RedemptionCode, error) {
	if _, err := s.store.GetPet(ctx, petID); err != nil {
		return nil, notFound(err)
	}
	return s.store.ListRedemptionsByPet(ctx, petID)
}

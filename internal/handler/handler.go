// Package handler содержит HTTP-обработчики API сервиса pettag.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/middleware"
	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/service"
	"github.com/mmeshcher/pettag/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ProvisionPets(ctx context.Context, count int) ([]model.Pet, error)
	ListPets(ctx context.Context) ([]model.Pet, error)
	GetPet(ctx context.Context, id string) (*model.Pet, error)
	UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile) (*model.Pet, error)

	CreateTheme(ctx context.Context, t model.Theme) (*model.Theme, error)
	UpdateTheme(ctx context.Context, t model.Theme) (*model.Theme, error)
	BatchUpdateThemes(ctx context.Context, patches []service.ThemePatch) error
	ListThemes(ctx context.Context) ([]model.Theme, error)
	StoreThemes(ctx context.Context) ([]model.Theme, error)
	ActiveThemesForPet(ctx context.Context, petID string) ([]model.Theme, error)
	PurchasedThemes(ctx context.Context, petID string) ([]service.PurchasedTheme, error)
	ApplyTheme(ctx context.Context, petID string, themeID *string) error

	PurchaseForPet(ctx context.Context, petID, themeID string) (*service.PurchaseResult, error)
	PurchaseForStoreUser(ctx context.Context, userID, themeID string) (*service.PurchaseResult, error)
	StorePurchases(ctx context.Context, userID string) ([]service.StorePurchase, error)
	ValidateCode(ctx context.Context, code string) (*service.CodeInfo, error)
	Redeem(ctx context.Context, code, petID string) (*service.RedeemResult, error)
	RedemptionHistory(ctx context.Context, petID string) ([]model.RedemptionCode, error)

	RegisterStoreUser(ctx context.Context, name, email, password string) (*model.StoreUser, error)
	AuthenticateStoreUser(ctx context.Context, email, password string) (*model.StoreUser, error)
}

// ReminderChecker выполняет проход сканера напоминаний по запросу.
type ReminderChecker interface {
	Scan(ctx context.Context, dryRun bool) (model.ScanSummary, error)
}

// Handler реализует HTTP-обработчики API сервиса pettag.
type Handler struct {
	service        Service
	checker        ReminderChecker
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	adminKey       string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, checker ReminderChecker, logger *zap.Logger, auth *middleware.AuthMiddleware, adminKey string) *Handler {
	return &Handler{
		service:        s,
		checker:        checker,
		logger:         logger,
		authMiddleware: auth,
		adminKey:       adminKey,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON разбирает тело запроса и проверяет теги validate.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return validation.Struct(v)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string, fields ...zap.Field) {
	var status int
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, model.ErrUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	default:
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

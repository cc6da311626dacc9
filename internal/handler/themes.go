package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/service"
)

type themeRequest struct {
	Name        string          `json:"name" validate:"required"`
	PresetKey   string          `json:"presetKey"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	IsActive    *bool           `json:"isActive"`
	InStore     *bool           `json:"inStore"`
	IsPremium   bool            `json:"isPremium"`
	Price       decimal.Decimal `json:"price"`
	Order       int             `json:"order"`
}

func (req themeRequest) toModel(id string) model.Theme {
	t := model.Theme{
		ID:          id,
		Name:        req.Name,
		PresetKey:   req.PresetKey,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsActive:    true,
		InStore:     true,
		IsPremium:   req.IsPremium,
		Price:       req.Price,
		Order:       req.Order,
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if req.InStore != nil {
		t.InStore = *req.InStore
	}
	return t
}

// CreateTheme добавляет тему в каталог.
func (h *Handler) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	t, err := h.service.CreateTheme(r.Context(), req.toModel(""))
	if err != nil {
		h.writeError(w, err, "create theme")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTheme перезаписывает атрибуты темы.
func (h *Handler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	themeID := chi.URLParam(r, "themeID")

	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	t, err := h.service.UpdateTheme(r.Context(), req.toModel(themeID))
	if err != nil {
		h.writeError(w, err, "update theme", zap.String("theme_id", themeID))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type themePatchRequest struct {
	Themes []struct {
		ID       string `json:"id" validate:"required"`
		IsActive *bool  `json:"isActive"`
		Order    *int   `json:"order"`
	} `json:"themes" validate:"required,min=1,dive"`
}

// BatchUpdateThemes меняет активность и порядок нескольких тем.
func (h *Handler) BatchUpdateThemes(w http.ResponseWriter, r *http.Request) {
	var req themePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	patches := make([]service.ThemePatch, 0, len(req.Themes))
	for _, t := range req.Themes {
		patches = append(patches, service.ThemePatch{ID: t.ID, IsActive: t.IsActive, Order: t.Order})
	}

	if err := h.service.BatchUpdateThemes(r.Context(), patches); err != nil {
		h.writeError(w, err, "batch update themes")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListThemes возвращает весь каталог тем.
func (h *Handler) ListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.service.ListThemes(r.Context())
	if err != nil {
		h.writeError(w, err, "list themes")
		return
	}
	if themes == nil {
		themes = []model.Theme{}
	}
	writeJSON(w, http.StatusOK, themes)
}

// StoreThemes возвращает темы магазина.
func (h *Handler) StoreThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.service.StoreThemes(r.Context())
	if err != nil {
		h.writeError(w, err, "store themes")
		return
	}
	if themes == nil {
		themes = []model.Theme{}
	}
	writeJSON(w, http.StatusOK, themes)
}

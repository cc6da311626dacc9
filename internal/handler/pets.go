package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
)

type provisionRequest struct {
	Count int `json:"count" validate:"min=1,max=100"`
}

// ProvisionPets создаёт пустые карточки питомцев для печати QR-меток.
func (h *Handler) ProvisionPets(w http.ResponseWriter, r *http.Request) {
	req := provisionRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}

	pets, err := h.service.ProvisionPets(r.Context(), req.Count)
	if err != nil {
		h.writeError(w, err, "provision pets", zap.Int("count", req.Count))
		return
	}
	writeJSON(w, http.StatusCreated, pets)
}

// ListPets возвращает все карточки питомцев.
func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	pets, err := h.service.ListPets(r.Context())
	if err != nil {
		h.writeError(w, err, "list pets")
		return
	}
	if pets == nil {
		pets = []model.Pet{}
	}
	writeJSON(w, http.StatusOK, pets)
}

// GetPet возвращает карточку питомца по QR-ссылке.
func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	pet, err := h.service.GetPet(r.Context(), petID)
	if err != nil {
		h.writeError(w, err, "get pet", zap.String("pet_id", petID))
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

type petProfileRequest struct {
	Info           model.PetInfo         `json:"info"`
	Owner          model.Owner           `json:"owner"`
	Allergic       model.AllergicInfo    `json:"allergicInfo"`
	Vaccinations   []model.Vaccination   `json:"vaccinations"`
	ReExaminations []model.ReExamination `json:"reExaminations"`
}

// UpdatePetProfile сохраняет профиль, заполненный владельцем.
// Флаг reminderSent из запроса игнорируется.
func (h *Handler) UpdatePetProfile(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	var req petProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	pet, err := h.service.UpdatePetProfile(r.Context(), petID, model.PetProfile{
		Info:           req.Info,
		Owner:          req.Owner,
		Allergic:       req.Allergic,
		Vaccinations:   req.Vaccinations,
		ReExaminations: req.ReExaminations,
	})
	if err != nil {
		h.writeError(w, err, "update pet profile", zap.String("pet_id", petID))
		return
	}
	writeJSON(w, http.StatusOK, pet)
}

// ActiveThemes возвращает темы, доступные питомцу.
func (h *Handler) ActiveThemes(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	themes, err := h.service.ActiveThemesForPet(r.Context(), petID)
	if err != nil {
		h.writeError(w, err, "active themes", zap.String("pet_id", petID))
		return
	}
	writeJSON(w, http.StatusOK, themes)
}

// PurchasedThemes возвращает темы, купленные питомцем.
func (h *Handler) PurchasedThemes(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	themes, err := h.service.PurchasedThemes(r.Context(), petID)
	if err != nil {
		h.writeError(w, err, "purchased themes", zap.String("pet_id", petID))
		return
	}
	writeJSON(w, http.StatusOK, themes)
}

// PurchaseForPet покупает тему для питомца.
func (h *Handler) PurchaseForPet(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")
	themeID := chi.URLParam(r, "themeID")

	res, err := h.service.PurchaseForPet(r.Context(), petID, themeID)
	if err != nil {
		h.writeError(w, err, "purchase for pet", zap.String("pet_id", petID), zap.String("theme_id", themeID))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type applyThemeRequest struct {
	ThemeID *string `json:"themeId"`
}

// ApplyTheme устанавливает или сбрасывает активную тему питомца.
func (h *Handler) ApplyTheme(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	var req applyThemeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := h.service.ApplyTheme(r.Context(), petID, req.ThemeID); err != nil {
		h.writeError(w, err, "apply theme", zap.String("pet_id", petID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

// RedeemCode активирует код для питомца.
func (h *Handler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	res, err := h.service.Redeem(r.Context(), req.Code, petID)
	if err != nil {
		h.writeError(w, err, "redeem code", zap.String("pet_id", petID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RedemptionHistory возвращает коды, активированные питомцем.
func (h *Handler) RedemptionHistory(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	codes, err := h.service.RedemptionHistory(r.Context(), petID)
	if err != nil {
		h.writeError(w, err, "redemption history", zap.String("pet_id", petID))
		return
	}
	if codes == nil {
		codes = []model.RedemptionCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

// ValidateCode проверяет код без его активации.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	info, err := h.service.ValidateCode(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, err, "validate code")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/middleware"
	"github.com/mmeshcher/pettag/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type storeUserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register регистрирует пользователя магазина и открывает сессию.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	u, err := h.service.RegisterStoreUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, "register store user")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	writeJSON(w, http.StatusCreated, storeUserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

// Login выполняет аутентификацию пользователя магазина и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	u, err := h.service.AuthenticateStoreUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, "login store user")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	writeJSON(w, http.StatusOK, storeUserResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

// Logout закрывает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// StorePurchase покупает тему текущим пользователем магазина и выпускает код активации.
func (h *Handler) StorePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.StoreUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	themeID := chi.URLParam(r, "themeID")

	res, err := h.service.PurchaseForStoreUser(r.Context(), userID, themeID)
	if err != nil {
		h.writeError(w, err, "store purchase", zap.String("user_id", userID), zap.String("theme_id", themeID))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// StorePurchases возвращает покупки текущего пользователя магазина с кодами.
func (h *Handler) StorePurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.StoreUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	purchases, err := h.service.StorePurchases(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "store purchases", zap.String("user_id", userID))
		return
	}

	if len(purchases) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

var _ Service = (*service.Service)(nil)

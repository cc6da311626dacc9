package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pettag/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса pettag.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommiddleware.AdminKey(h.adminKey))

		r.Post("/pets", h.ProvisionPets)
		r.Get("/pets", h.ListPets)

		r.Get("/themes", h.ListThemes)
		r.Post("/themes", h.CreateTheme)
		r.Patch("/themes", h.BatchUpdateThemes)
		r.Put("/themes/{themeID}", h.UpdateTheme)

		r.Get("/reminders/check", h.CheckReminders)
	})

	r.Route("/api/pets/{petID}", func(r chi.Router) {
		r.Get("/", h.GetPet)
		r.Put("/", h.UpdatePetProfile)

		r.Get("/themes", h.ActiveThemes)
		r.Get("/themes/purchased", h.PurchasedThemes)
		r.Post("/themes/{themeID}/purchase", h.PurchaseForPet)
		r.Put("/theme", h.ApplyTheme)

		r.Post("/redeem", h.RedeemCode)
		r.Get("/redemptions", h.RedemptionHistory)
	})

	r.Post("/api/codes/validate", h.ValidateCode)

	r.Route("/api/store", func(r chi.Router) {
		r.Get("/themes", h.StoreThemes)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/themes/{themeID}/purchase", h.StorePurchase)
			r.Get("/purchases", h.StorePurchases)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/middleware"
	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/service"
)

const testAdminKey = "admin-key"

type stubService struct {
	provisionCount int
	provisionErr   error

	pet    *model.Pet
	petErr error

	profile    model.PetProfile
	profileErr error

	createdTheme model.Theme
	themeErr     error

	patches  []service.ThemePatch
	patchErr error

	themes []model.Theme

	appliedThemeID *string
	applyErr       error

	purchaseResp *service.PurchaseResult
	purchaseErr  error
	purchaseUser string

	storePurchases    []service.StorePurchase
	storePurchasesErr error

	codeInfo    *service.CodeInfo
	validateErr error

	redeemCode  string
	redeemPetID string
	redeemResp  *service.RedeemResult
	redeemErr   error

	history []model.RedemptionCode

	user    *model.StoreUser
	userErr error
}

func (s *stubService) ProvisionPets(ctx context.Context, count int) ([]model.Pet, error) {
	s.provisionCount = count
	if s.provisionErr != nil {
		return nil, s.provisionErr
	}
	pets := make([]model.Pet, count)
	for i := range pets {
		pets[i] = model.Pet{ID: fmt.Sprintf("pet-%d", i), Status: model.PetStatusUnused}
	}
	return pets, nil
}

func (s *stubService) ListPets(ctx context.Context) ([]model.Pet, error) {
	return nil, nil
}

func (s *stubService) GetPet(ctx context.Context, id string) (*model.Pet, error) {
	return s.pet, s.petErr
}

func (s *stubService) UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile) (*model.Pet, error) {
	s.profile = profile
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return &model.Pet{ID: id, Info: profile.Info, Owner: profile.Owner}, nil
}

func (s *stubService) CreateTheme(ctx context.Context, t model.Theme) (*model.Theme, error) {
	s.createdTheme = t
	if s.themeErr != nil {
		return nil, s.themeErr
	}
	t.ID = "theme-1"
	return &t, nil
}

func (s *stubService) UpdateTheme(ctx context.Context, t model.Theme) (*model.Theme, error) {
	s.createdTheme = t
	if s.themeErr != nil {
		return nil, s.themeErr
	}
	return &t, nil
}

func (s *stubService) BatchUpdateThemes(ctx context.Context, patches []service.ThemePatch) error {
	s.patches = patches
	return s.patchErr
}

func (s *stubService) ListThemes(ctx context.Context) ([]model.Theme, error) {
	return s.themes, nil
}

func (s *stubService) StoreThemes(ctx context.Context) ([]model.Theme, error) {
	return s.themes, nil
}

func (s *stubService) ActiveThemesForPet(ctx context.Context, petID string) ([]model.Theme, error) {
	return s.themes, s.petErr
}

func (s *stubService) PurchasedThemes(ctx context.Context, petID string) ([]service.PurchasedTheme, error) {
	return nil, s.petErr
}

func (s *stubService) ApplyTheme(ctx context.Context, petID string, themeID *string) error {
	s.appliedThemeID = themeID
	return s.applyErr
}

func (s *stubService) PurchaseForPet(ctx context.Context, petID, themeID string) (*service.PurchaseResult, error) {
	return s.purchaseResp, s.purchaseErr
}

func (s *stubService) PurchaseForStoreUser(ctx context.Context, userID, themeID string) (*service.PurchaseResult, error) {
	s.purchaseUser = userID
	return s.purchaseResp, s.purchaseErr
}

func (s *stubService) StorePurchases(ctx context.Context, userID string) ([]service.StorePurchase, error) {
	return s.storePurchases, s.storePurchasesErr
}

func (s *stubService) ValidateCode(ctx context.Context, code string) (*service.CodeInfo, error) {
	return s.codeInfo, s.validateErr
}

func (s *stubService) Redeem(ctx context.Context, code, petID string) (*service.RedeemResult, error) {
	s.redeemCode = code
	s.redeemPetID = petID
	return s.redeemResp, s.redeemErr
}

func (s *stubService) RedemptionHistory(ctx context.Context, petID string) ([]model.RedemptionCode, error) {
	return s.history, nil
}

func (s *stubService) RegisterStoreUser(ctx context.Context, name, email, password string) (*model.StoreUser, error) {
	return s.user, s.userErr
}

func (s *stubService) AuthenticateStoreUser(ctx context.Context, email, password string) (*model.StoreUser, error) {
	return s.user, s.userErr
}

type stubChecker struct {
	dryRun  bool
	summary model.ScanSummary
	err     error
}

func (c *stubChecker) Scan(ctx context.Context, dryRun bool) (model.ScanSummary, error) {
	c.dryRun = dryRun
	c.summary.DryRun = dryRun
	return c.summary, c.err
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()
	return newTestHandlerWithChecker(t, svc, &stubChecker{})
}

func newTestHandlerWithChecker(t *testing.T, svc Service, checker ReminderChecker) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, checker, logger, auth, testAdminKey)
}

func doRequest(h *Handler, method, target string, body any, header http.Header) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func adminHeader() http.Header {
	return http.Header{middleware.AdminKeyHeader: []string{testAdminKey}}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: pet", model.ErrNotFound), http.StatusNotFound},
		{"conflict", model.ErrConflict, http.StatusConflict},
		{"expired", model.ErrExpired, http.StatusGone},
		{"unavailable", model.ErrUnavailable, http.StatusUnprocessableEntity},
		{"forbidden", model.ErrForbidden, http.StatusForbidden},
		{"invalid input", model.ErrInvalidInput, http.StatusBadRequest},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{redeemErr: tt.err})

			res := doRequest(h, http.MethodPost, "/api/pets/pet-1/redeem", codeRequest{Code: "ABC123"}, nil)
			defer res.Body.Close()

			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}
}

func TestRedeemCode_Success(t *testing.T) {
	svc := &stubService{
		redeemResp: &service.RedeemResult{
			Code:  model.RedemptionCode{Code: "ABC123", Status: model.CodeStatusRedeemed},
			Theme: model.Theme{ID: "theme-1"},
		},
	}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/pets/pet-1/redeem", codeRequest{Code: "abc123"}, nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.redeemPetID != "pet-1" || svc.redeemCode != "abc123" {
		t.Fatalf("unexpected redeem args: pet=%q code=%q", svc.redeemPetID, svc.redeemCode)
	}

	var got service.RedeemResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Theme.ID != "theme-1" {
		t.Fatalf("theme id = %q, want theme-1", got.Theme.ID)
	}
}

func TestRedeemCode_MissingCode(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(h, http.MethodPost, "/api/pets/pet-1/redeem", map[string]string{}, nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/admin/pets", provisionRequest{Count: 2}, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}

	res = doRequest(h, http.MethodPost, "/api/admin/pets", provisionRequest{Count: 2}, adminHeader())
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if svc.provisionCount != 2 {
		t.Fatalf("provision count = %d, want 2", svc.provisionCount)
	}

	var pets []model.Pet
	if err := json.NewDecoder(res.Body).Decode(&pets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pets) != 2 {
		t.Fatalf("pets = %d, want 2", len(pets))
	}
}

func TestProvisionPets_RejectsOversizedBatch(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/admin/pets", provisionRequest{Count: 101}, adminHeader())
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if svc.provisionCount != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestCheckReminders_DryRun(t *testing.T) {
	checker := &stubChecker{summary: model.ScanSummary{PetsChecked: 3, RemindersDue: 2}}
	h := newTestHandlerWithChecker(t, &stubService{}, checker)

	res := doRequest(h, http.MethodGet, "/api/admin/reminders/check", nil, adminHeader())
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !checker.dryRun {
		t.Fatalf("check must run scanner in dry-run mode")
	}

	var got model.ScanSummary
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PetsChecked != 3 || got.RemindersDue != 2 || !got.DryRun {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestCreateTheme_Defaults(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := map[string]any{"name": "Ocean", "isPremium": true, "price": "49000"}
	res := doRequest(h, http.MethodPost, "/api/admin/themes", body, adminHeader())
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if !svc.createdTheme.IsActive || !svc.createdTheme.InStore {
		t.Fatalf("theme must be active and in store by default: %+v", svc.createdTheme)
	}
	if svc.createdTheme.Price.String() != "49000" {
		t.Fatalf("price = %s, want 49000", svc.createdTheme.Price)
	}
}

func TestBatchUpdateThemes(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := map[string]any{"themes": []map[string]any{
		{"id": "t1", "isActive": false},
		{"id": "t2", "order": 5},
	}}
	res := doRequest(h, http.MethodPatch, "/api/admin/themes", body, adminHeader())
	res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if len(svc.patches) != 2 {
		t.Fatalf("patches = %d, want 2", len(svc.patches))
	}
	if svc.patches[0].IsActive == nil || *svc.patches[0].IsActive {
		t.Fatalf("first patch must deactivate theme")
	}
	if svc.patches[1].Order == nil || *svc.patches[1].Order != 5 {
		t.Fatalf("second patch must set order 5")
	}

	res = doRequest(h, http.MethodPatch, "/api/admin/themes", map[string]any{"themes": []any{}}, adminHeader())
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestApplyTheme_ClearWithNull(t *testing.T) {
	themeID := "t1"
	svc := &stubService{appliedThemeID: &themeID}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPut, "/api/pets/pet-1/theme", map[string]any{"themeId": nil}, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if svc.appliedThemeID != nil {
		t.Fatalf("theme must be cleared")
	}
}

func TestUpdatePetProfile(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := map[string]any{
		"info":  map[string]any{"name": "Milu"},
		"owner": map[string]any{"name": "An", "email": "an@example.com"},
		"reExaminations": []map[string]any{
			{"date": "2026-10-20T00:00:00+07:00", "note": "fasting"},
		},
	}
	res := doRequest(h, http.MethodPut, "/api/pets/pet-1", body, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.profile.Info.Name != "Milu" || svc.profile.Owner.Email != "an@example.com" {
		t.Fatalf("unexpected profile: %+v", svc.profile)
	}
	if len(svc.profile.ReExaminations) != 1 {
		t.Fatalf("re-examinations = %d, want 1", len(svc.profile.ReExaminations))
	}
}

func TestGetPet_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{petErr: model.ErrNotFound})

	res := doRequest(h, http.MethodGet, "/api/pets/missing", nil, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	h := newTestHandler(t, &stubService{userErr: service.ErrInvalidCredentials})

	res := doRequest(h, http.MethodPost, "/api/store/login", loginRequest{Email: "a@b.c", Password: "secret"}, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestRegister_SetsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{user: &model.StoreUser{ID: "u1", Email: "a@b.c"}})

	res := doRequest(h, http.MethodPost, "/api/store/register", registerRequest{Email: "a@b.c", Password: "secret"}, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("session cookie must be set")
	}
}

func TestStorePurchase_RequiresSession(t *testing.T) {
	svc := &stubService{purchaseResp: &service.PurchaseResult{Purchase: model.Purchase{ID: "p1"}}}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/store/themes/t1/purchase", nil, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, "u1")
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/api/store/themes/t1/purchase", nil)
	req.AddCookie(cookie)
	respRec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(respRec, req)

	if respRec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", respRec.Code, http.StatusCreated)
	}
	if svc.purchaseUser != "u1" {
		t.Fatalf("purchase user = %q, want u1", svc.purchaseUser)
	}
}

func TestStorePurchases_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, "u1")
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/api/store/purchases", nil)
	req.AddCookie(cookie)
	respRec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.StorePurchases))
	handlerWithAuth.ServeHTTP(respRec, req)

	if respRec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", respRec.Code, http.StatusNoContent)
	}
}

func TestStoreThemes_JSONResponse(t *testing.T) {
	h := newTestHandler(t, &stubService{themes: []model.Theme{{ID: "t1", Name: "Ocean"}}})

	res := doRequest(h, http.MethodGet, "/api/store/themes", nil, nil)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
}

func TestValidateCode_Expired(t *testing.T) {
	h := newTestHandler(t, &stubService{validateErr: model.ErrExpired})

	res := doRequest(h, http.MethodPost, "/api/codes/validate", codeRequest{Code: "ABC123"}, nil)
	res.Body.Close()

	if res.StatusCode != http.StatusGone {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusGone)
	}
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/pettag/internal/model"
)

type memTxKey struct{}

type memTx struct {
	undo []func()
}

type purchaseKey struct {
	kind    model.AcquirerKind
	id      string
	themeID string
}

// MemoryRepository хранит данные в памяти процесса. Используется в тестах и для локального запуска.
type MemoryRepository struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	pets       map[string]model.Pet
	qrTokens   map[string]string
	themes     map[string]model.Theme
	purchases  map[purchaseKey]model.Purchase
	codes      map[string]model.RedemptionCode
	codeByText map[string]string
	users      map[string]model.StoreUser
	userEmails map[string]string
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pets:       make(map[string]model.Pet),
		qrTokens:   make(map[string]string),
		themes:     make(map[string]model.Theme),
		purchases:  make(map[purchaseKey]model.Purchase),
		codes:      make(map[string]model.RedemptionCode),
		codeByText: make(map[string]string),
		users:      make(map[string]model.StoreUser),
		userEmails: make(map[string]string),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn последовательно с другими транзакциями. При ошибке изменения,
// сделанные внутри fn, откатываются.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		r.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

// onRollback запоминает обратное действие. Вызывается под r.mu.
func (r *MemoryRepository) onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func clonePet(p model.Pet) model.Pet {
	p.Allergic.Substances = append([]string(nil), p.Allergic.Substances...)
	p.Vaccinations = append([]model.Vaccination(nil), p.Vaccinations...)
	p.ReExaminations = append([]model.ReExamination(nil), p.ReExaminations...)
	return p
}

func (r *MemoryRepository) putPet(ctx context.Context, p model.Pet) {
	if prev, ok := r.pets[p.ID]; ok {
		r.onRollback(ctx, func() { r.pets[prev.ID] = prev })
	} else {
		r.onRollback(ctx, func() { delete(r.pets, p.ID); delete(r.qrTokens, p.QRToken) })
	}
	r.pets[p.ID] = p
	r.qrTokens[p.QRToken] = p.ID
}

// CreatePet сохраняет новую карточку питомца.
func (r *MemoryRepository) CreatePet(ctx context.Context, p model.Pet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pets[p.ID]; ok {
		return fmt.Errorf("%w: pet %s", ErrDuplicate, p.ID)
	}
	if _, ok := r.qrTokens[p.QRToken]; ok {
		return fmt.Errorf("%w: qr token", ErrDuplicate)
	}
	r.putPet(ctx, clonePet(p))
	return nil
}

// GetPet возвращает карточку питомца по идентификатору.
func (r *MemoryRepository) GetPet(_ context.Context, id string) (*model.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pets[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePet(p)
	return &p, nil
}

// ListPets возвращает все карточки, новые первыми.
func (r *MemoryRepository) ListPets(_ context.Context) ([]model.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Pet, 0, len(r.pets))
	for _, p := range r.pets {
		out = append(out, clonePet(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdatePetProfile применяет изменения владельца атомарно относительно сканера напоминаний.
func (r *MemoryRepository) UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile, now time.Time) (*model.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pets[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePet(p)
	p.Apply(profile, now)
	p = clonePet(p)
	r.putPet(ctx, p)

	out := clonePet(p)
	return &out, nil
}

// TouchPetScan запоминает момент последнего открытия карточки.
func (r *MemoryRepository) TouchPetScan(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pets[id]
	if !ok {
		return ErrNotFound
	}
	p = clonePet(p)
	p.LastScannedAt = &at
	r.putPet(ctx, p)
	return nil
}

// AssignTheme устанавливает или сбрасывает активную тему питомца.
func (r *MemoryRepository) AssignTheme(ctx context.Context, petID string, themeID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pets[petID]
	if !ok {
		return ErrNotFound
	}
	prevTheme := p.ThemeID
	r.onRollback(ctx, func() {
		if cur, ok := r.pets[petID]; ok {
			cur.ThemeID = prevTheme
			r.pets[petID] = cur
		}
	})

	if themeID != nil {
		id := *themeID
		p.ThemeID = &id
	} else {
		p.ThemeID = nil
	}
	p.UpdatedAt = time.Now()
	r.pets[petID] = p
	return nil
}

// FindDueReminders возвращает питомцев с email владельца и неотправленным напоминанием в интервале.
func (r *MemoryRepository) FindDueReminders(_ context.Context, start, end time.Time) ([]model.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Pet
	for _, p := range r.pets {
		if p.Owner.Email == "" {
			continue
		}
		for _, re := range p.ReExaminations {
			if !re.ReminderSent && !re.Date.Before(start) && !re.Date.After(end) {
				out = append(out, clonePet(p))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkReminderSent отмечает первую неотправленную запись осмотра с указанной датой.
func (r *MemoryRepository) MarkReminderSent(ctx context.Context, petID string, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pets[petID]
	if !ok {
		return false, nil
	}
	for i, re := range p.ReExaminations {
		if !re.ReminderSent && re.Date.Equal(date) {
			p = clonePet(p)
			p.ReExaminations[i].ReminderSent = true
			r.putPet(ctx, p)
			return true, nil
		}
	}
	return false, nil
}

// CreateTheme сохраняет новую тему.
func (r *MemoryRepository) CreateTheme(ctx context.Context, t model.Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.themes[t.ID]; ok {
		return fmt.Errorf("%w: theme %s", ErrDuplicate, t.ID)
	}
	r.onRollback(ctx, func() { delete(r.themes, t.ID) })
	r.themes[t.ID] = t
	return nil
}

// UpdateTheme перезаписывает атрибуты темы.
func (r *MemoryRepository) UpdateTheme(ctx context.Context, t model.Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.themes[t.ID]
	if !ok {
		return ErrNotFound
	}
	r.onRollback(ctx, func() { r.themes[prev.ID] = prev })
	r.themes[t.ID] = t
	return nil
}

// GetTheme возвращает тему по идентификатору.
func (r *MemoryRepository) GetTheme(_ context.Context, id string) (*model.Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.themes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// ListThemes возвращает темы, удовлетворяющие фильтру.
func (r *MemoryRepository) ListThemes(_ context.Context, f ThemeFilter) ([]model.Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Theme
	for _, t := range r.themes {
		if f.OnlyActive && !t.IsActive {
			continue
		}
		if f.OnlyInStore && !t.InStore {
			continue
		}
		if f.OnlyFree && t.IsPremium {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// CreatePurchase сохраняет покупку, отклоняя повторную покупку той же темы тем же владельцем.
func (r *MemoryRepository) CreatePurchase(ctx context.Context, p model.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := purchaseKey{kind: p.Acquirer.Kind, id: p.Acquirer.ID, themeID: p.ThemeID}
	if _, ok := r.purchases[key]; ok {
		return fmt.Errorf("%w: purchase %s/%s of theme %s", ErrDuplicate, p.Acquirer.Kind, p.Acquirer.ID, p.ThemeID)
	}
	r.onRollback(ctx, func() { delete(r.purchases, key) })
	r.purchases[key] = p
	return nil
}

// FindPurchase возвращает покупку темы владельцем.
func (r *MemoryRepository) FindPurchase(_ context.Context, acq model.Acquirer, themeID string) (*model.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.purchases[purchaseKey{kind: acq.Kind, id: acq.ID, themeID: themeID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListPurchases возвращает покупки владельца, новые первыми.
func (r *MemoryRepository) ListPurchases(_ context.Context, acq model.Acquirer) ([]model.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Purchase
	for k, p := range r.purchases {
		if k.kind == acq.Kind && k.id == acq.ID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

// CreateRedemptionCode сохраняет новый код активации.
func (r *MemoryRepository) CreateRedemptionCode(ctx context.Context, c model.RedemptionCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codeByText[c.Code]; ok {
		return fmt.Errorf("%w: redemption code", ErrDuplicate)
	}
	if _, ok := r.codes[c.ID]; ok {
		return fmt.Errorf("%w: redemption code", ErrDuplicate)
	}
	r.onRollback(ctx, func() {
		delete(r.codes, c.ID)
		delete(r.codeByText, c.Code)
	})
	r.codes[c.ID] = c
	r.codeByText[c.Code] = c.ID
	return nil
}

// FindRedemptionCode возвращает код активации по его каноническому значению.
func (r *MemoryRepository) FindRedemptionCode(_ context.Context, code string) (*model.RedemptionCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codeByText[code]
	if !ok {
		return nil, ErrNotFound
	}
	c := r.codes[id]
	return &c, nil
}

// UpdateRedemptionCodeStatus переводит активный код в новый статус либо возвращает ErrStaleState.
func (r *MemoryRepository) UpdateRedemptionCodeStatus(ctx context.Context, id string, tr model.CodeTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[id]
	if !ok || c.Status != model.CodeStatusActive {
		return ErrStaleState
	}
	prev := c
	r.onRollback(ctx, func() { r.codes[prev.ID] = prev })

	c.Status = tr.To
	c.RedeemedBy = tr.RedeemedBy
	c.RedeemedAt = tr.RedeemedAt
	r.codes[id] = c
	return nil
}

func (r *MemoryRepository) filterCodes(match func(model.RedemptionCode) bool, less func(a, b model.RedemptionCode) bool) []model.RedemptionCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.RedemptionCode
	for _, c := range r.codes {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ListRedemptionCodesByCreator возвращает коды, выпущенные пользователем магазина.
func (r *MemoryRepository) ListRedemptionCodesByCreator(_ context.Context, userID string) ([]model.RedemptionCode, error) {
	return r.filterCodes(
		func(c model.RedemptionCode) bool { return c.CreatedBy == userID },
		func(a, b model.RedemptionCode) bool { return a.CreatedAt.After(b.CreatedAt) },
	), nil
}

// ListRedemptionsByPet возвращает коды, активированные питомцем.
func (r *MemoryRepository) ListRedemptionsByPet(_ context.Context, petID string) ([]model.RedemptionCode, error) {
	return r.filterCodes(
		func(c model.RedemptionCode) bool {
			return c.Status == model.CodeStatusRedeemed && c.RedeemedBy != nil && *c.RedeemedBy == petID
		},
		func(a, b model.RedemptionCode) bool { return a.RedeemedAt.After(*b.RedeemedAt) },
	), nil
}

// CreateStoreUser создаёт пользователя магазина.
func (r *MemoryRepository) CreateStoreUser(ctx context.Context, u model.StoreUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.userEmails[u.Email]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, u.Email)
	}
	r.onRollback(ctx, func() {
		delete(r.users, u.ID)
		delete(r.userEmails, u.Email)
	})
	r.users[u.ID] = u
	r.userEmails[u.Email] = u.ID
	return nil
}

// GetStoreUserByEmail возвращает пользователя магазина по email.
func (r *MemoryRepository) GetStoreUserByEmail(_ context.Context, email string) (*model.StoreUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.userEmails[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.users[id]
	return &u, nil
}

// GetStoreUser возвращает пользователя магазина по идентификатору.
func (r *MemoryRepository) GetStoreUser(_ context.Context, id string) (*model.StoreUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

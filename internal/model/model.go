// Package model содержит доменные сущности сервиса pettag.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PetStatus описывает состояние карточки питомца.
type PetStatus string

const (
	PetStatusUnused PetStatus = "unused"
	PetStatusActive PetStatus = "active"
)

// PetInfo содержит основные сведения о питомце.
type PetInfo struct {
	Name        string     `json:"name"`
	Species     string     `json:"species"`
	BirthDate   *time.Time `json:"birthDate,omitempty"`
	Description string     `json:"description"`
}

// Owner содержит контактные данные владельца.
type Owner struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// AllergicInfo описывает аллергии питомца.
type AllergicInfo struct {
	Substances []string `json:"substances"`
	Note       string   `json:"note"`
}

// Vaccination описывает сделанную прививку.
type Vaccination struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// ReExamination описывает запланированный повторный осмотр.
// ReminderSent выставляется сканером напоминаний один раз и больше не сбрасывается.
type ReExamination struct {
	Date         time.Time `json:"date"`
	Note         string    `json:"note"`
	ReminderSent bool      `json:"reminderSent"`
}

// Pet представляет карточку питомца, привязанную к QR-метке.
type Pet struct {
	ID             string          `json:"id"`
	QRToken        string          `json:"qrToken"`
	QRCodeURL      string          `json:"qrCodeUrl"`
	Status         PetStatus       `json:"status"`
	ThemeID        *string         `json:"themeId,omitempty"`
	LastScannedAt  *time.Time      `json:"lastScannedAt,omitempty"`
	Info           PetInfo         `json:"info"`
	Owner          Owner           `json:"owner"`
	Allergic       AllergicInfo    `json:"allergicInfo"`
	Vaccinations   []Vaccination   `json:"vaccinations"`
	ReExaminations []ReExamination `json:"reExaminations"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// RefreshStatus пересчитывает статус карточки по заполненности профиля.
func (p *Pet) RefreshStatus() {
	if p.Info.Name != "" || p.Owner.Name != "" || p.Owner.Phone != "" || p.Owner.Email != "" {
		p.Status = PetStatusActive
		return
	}
	p.Status = PetStatusUnused
}

// PetProfile содержит поля, которые владелец может изменять самостоятельно.
type PetProfile struct {
	Info           PetInfo
	Owner          Owner
	Allergic       AllergicInfo
	Vaccinations   []Vaccination
	ReExaminations []ReExamination
}

// Apply переносит профиль в карточку, сохраняя уже выставленные флаги напоминаний.
func (p *Pet) Apply(profile PetProfile, now time.Time) {
	p.Info = profile.Info
	p.Owner = profile.Owner
	p.Allergic = profile.Allergic
	p.Vaccinations = profile.Vaccinations
	p.ReExaminations = MergeReminderFlags(p.ReExaminations, profile.ReExaminations)
	p.UpdatedAt = now
	p.RefreshStatus()
}

// MergeReminderFlags возвращает обновлённый список осмотров, в котором флаг отправленного
// напоминания взят из сохранённой записи с той же датой. Клиентское значение флага игнорируется.
func MergeReminderFlags(stored, updated []ReExamination) []ReExamination {
	sent := make(map[int64]int, len(stored))
	for _, re := range stored {
		if re.ReminderSent {
			sent[re.Date.UnixMilli()]++
		}
	}

	out := make([]ReExamination, 0, len(updated))
	for _, re := range updated {
		key := re.Date.UnixMilli()
		re.ReminderSent = sent[key] > 0
		if re.ReminderSent {
			sent[key]--
		}
		out = append(out, re)
	}
	return out
}

// Theme описывает тему оформления карточки питомца.
type Theme struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PresetKey   string          `json:"presetKey"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	IsActive    bool            `json:"isActive"`
	InStore     bool            `json:"inStore"`
	IsPremium   bool            `json:"isPremium"`
	Price       decimal.Decimal `json:"price"`
	Order       int             `json:"order"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PriceScale - число знаков после запятой, которое хранится для цены.
const PriceScale = 2

// NormalizePrice приводит цену к инварианту: бесплатная тема всегда стоит 0.
// Цена премиум-темы не может быть отрицательной или точнее копейки.
func (t *Theme) NormalizePrice() error {
	if !t.IsPremium {
		t.Price = decimal.Zero
		return nil
	}
	if t.Price.IsNegative() {
		return ErrInvalidInput
	}
	if !t.Price.Equal(t.Price.Truncate(PriceScale)) {
		return ErrInvalidInput
	}
	return nil
}

// ForSale сообщает, можно ли купить тему в магазине.
func (t Theme) ForSale() bool {
	return t.IsActive && t.InStore
}

// AcquirerKind определяет тип владельца купленной темы.
type AcquirerKind string

const (
	AcquirerPet       AcquirerKind = "pet"
	AcquirerStoreUser AcquirerKind = "store_user"
)

// Acquirer идентифицирует питомца или пользователя магазина, получившего тему.
type Acquirer struct {
	Kind AcquirerKind `json:"kind"`
	ID   string       `json:"id"`
}

// PetAcquirer возвращает Acquirer для питомца.
func PetAcquirer(petID string) Acquirer {
	return Acquirer{Kind: AcquirerPet, ID: petID}
}

// StoreUserAcquirer возвращает Acquirer для пользователя магазина.
func StoreUserAcquirer(userID string) Acquirer {
	return Acquirer{Kind: AcquirerStoreUser, ID: userID}
}

// PurchaseStatus описывает статус транзакции покупки.
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// Purchase описывает факт владения темой. Сумма фиксируется на момент покупки.
type Purchase struct {
	ID            string          `json:"id"`
	Acquirer      Acquirer        `json:"acquirer"`
	ThemeID       string          `json:"themeId"`
	PurchasedAt   time.Time       `json:"purchasedAt"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PurchaseStatus  `json:"status"`
}

// CodeStatus описывает состояние кода активации.
type CodeStatus string

const (
	CodeStatusActive   CodeStatus = "active"
	CodeStatusRedeemed CodeStatus = "redeemed"
	CodeStatusExpired  CodeStatus = "expired"
)

// RedemptionCode описывает одноразовый код активации темы.
type RedemptionCode struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	ThemeID    string     `json:"themeId"`
	CreatedBy  string     `json:"createdBy"`
	RedeemedBy *string    `json:"redeemedBy,omitempty"`
	Status     CodeStatus `json:"status"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// PastExpiry сообщает, истёк ли срок действия кода к моменту now.
func (c RedemptionCode) PastExpiry(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CodeTransition описывает переход кода из статуса active.
type CodeTransition struct {
	To         CodeStatus
	RedeemedBy *string
	RedeemedAt *time.Time
}

// StoreUser представляет пользователя магазина тем.
type StoreUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// ScanSummary содержит итог одного прохода сканера напоминаний.
type ScanSummary struct {
	PetsChecked     int  `json:"petsChecked"`
	RemindersDue    int  `json:"remindersDue"`
	RemindersSent   int  `json:"remindersSent"`
	RemindersFailed int  `json:"remindersFailed"`
	DryRun          bool `json:"dryRun"`
}

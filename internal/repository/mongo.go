package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mmeshcher/pettag/internal/model"
)

const (
	petsCollection       = "pets"
	themesCollection     = "themes"
	purchasesCollection  = "purchases"
	codesCollection      = "redemption_codes"
	storeUsersCollection = "store_users"
)

// MongoRepository хранит данные в MongoDB. Повторные осмотры лежат внутри документа питомца.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoRepository подключается к MongoDB и создаёт индексы.
func NewMongoRepository(uri, database string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	r := &MongoRepository{client: client, db: client.Database(database)}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		petsCollection: {
			{Keys: bson.D{{Key: "qrToken", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "reExaminations.date", Value: 1}}},
		},
		themesCollection: {
			{Keys: bson.D{{Key: "order", Value: 1}, {Key: "name", Value: 1}}},
		},
		purchasesCollection: {
			{
				Keys:    bson.D{{Key: "acquirerKind", Value: 1}, {Key: "acquirerId", Value: 1}, {Key: "themeId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		codesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
			{Keys: bson.D{{Key: "redeemedBy", Value: 1}}},
		},
		storeUsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Close закрывает соединение с MongoDB.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// InTx выполняет fn в транзакции MongoDB. Контекст сессии передаётся в fn как ctx.
func (r *MongoRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

type petInfoDoc struct {
	Name        string     `bson:"name"`
	Species     string     `bson:"species"`
	BirthDate   *time.Time `bson:"birthDate"`
	Description string     `bson:"description"`
}

type ownerDoc struct {
	Name  string `bson:"name"`
	Phone string `bson:"phone"`
	Email string `bson:"email"`
}

type allergicDoc struct {
	Substances []string `bson:"substances"`
	Note       string   `bson:"note"`
}

type vaccinationDoc struct {
	Name string    `bson:"name"`
	Date time.Time `bson:"date"`
}

type reExaminationDoc struct {
	Date         time.Time `bson:"date"`
	Note         string    `bson:"note"`
	ReminderSent bool      `bson:"reminderSent"`
}

type petDoc struct {
	ID             string             `bson:"_id"`
	QRToken        string             `bson:"qrToken"`
	QRCodeURL      string             `bson:"qrCodeUrl"`
	Status         string             `bson:"status"`
	ThemeID        *string            `bson:"themeId"`
	LastScannedAt  *time.Time         `bson:"lastScannedAt"`
	Info           petInfoDoc         `bson:"info"`
	Owner          ownerDoc           `bson:"owner"`
	Allergic       allergicDoc        `bson:"allergicInfo"`
	Vaccinations   []vaccinationDoc   `bson:"vaccinations"`
	ReExaminations []reExaminationDoc `bson:"reExaminations"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func toPetDoc(p model.Pet) petDoc {
	d := petDoc{
		ID:            p.ID,
		QRToken:       p.QRToken,
		QRCodeURL:     p.QRCodeURL,
		Status:        string(p.Status),
		ThemeID:       p.ThemeID,
		LastScannedAt: p.LastScannedAt,
		Info:          petInfoDoc(p.Info),
		Owner:         ownerDoc(p.Owner),
		Allergic:      allergicDoc{Substances: nonNilStrings(p.Allergic.Substances), Note: p.Allergic.Note},
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	d.Vaccinations = make([]vaccinationDoc, 0, len(p.Vaccinations))
	for _, v := range p.Vaccinations {
		d.Vaccinations = append(d.Vaccinations, vaccinationDoc(v))
	}
	d.ReExaminations = make([]reExaminationDoc, 0, len(p.ReExaminations))
	for _, re := range p.ReExaminations {
		d.ReExaminations = append(d.ReExaminations, reExaminationDoc(re))
	}
	return d
}

func (d petDoc) toModel() model.Pet {
	p := model.Pet{
		ID:            d.ID,
		QRToken:       d.QRToken,
		QRCodeURL:     d.QRCodeURL,
		Status:        model.PetStatus(d.Status),
		ThemeID:       d.ThemeID,
		LastScannedAt: d.LastScannedAt,
		Info:          model.PetInfo(d.Info),
		Owner:         model.Owner(d.Owner),
		Allergic:      model.AllergicInfo(d.Allergic),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, v := range d.Vaccinations {
		p.Vaccinations = append(p.Vaccinations, model.Vaccination(v))
	}
	for _, re := range d.ReExaminations {
		p.ReExaminations = append(p.ReExaminations, model.ReExamination(re))
	}
	return p
}

// CreatePet сохраняет новую карточку питомца.
func (r *MongoRepository) CreatePet(ctx context.Context, p model.Pet) error {
	_, err := r.db.Collection(petsCollection).InsertOne(ctx, toPetDoc(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: pet %s", ErrDuplicate, p.ID)
		}
		return fmt.Errorf("insert pet: %w", err)
	}
	return nil
}

// GetPet возвращает карточку питомца по идентификатору.
func (r *MongoRepository) GetPet(ctx context.Context, id string) (*model.Pet, error) {
	var d petDoc
	if err := r.db.Collection(petsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pet: %w", err)
	}
	p := d.toModel()
	return &p, nil
}

func (r *MongoRepository) findPets(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Pet, error) {
	cursor, err := r.db.Collection(petsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find pets: %w", err)
	}
	defer cursor.Close(ctx)

	var res []model.Pet
	for cursor.Next(ctx) {
		var d petDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode pet: %w", err)
		}
		res = append(res, d.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return res, nil
}

// ListPets возвращает все карточки, новые первыми.
func (r *MongoRepository) ListPets(ctx context.Context) ([]model.Pet, error) {
	return r.findPets(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// UpdatePetProfile применяет изменения владельца внутри транзакции. Конфликт записи со сканером
// напоминаний приводит к повтору транзакции драйвером.
func (r *MongoRepository) UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile, now time.Time) (*model.Pet, error) {
	var updated *model.Pet

	err := r.InTx(ctx, func(ctx context.Context) error {
		p, err := r.GetPet(ctx, id)
		if err != nil {
			return err
		}

		p.Apply(profile, now)

		res, err := r.db.Collection(petsCollection).ReplaceOne(ctx, bson.M{"_id": id}, toPetDoc(*p))
		if err != nil {
			return fmt.Errorf("replace pet: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *MongoRepository) updatePet(ctx context.Context, id string, set bson.M) error {
	res, err := r.db.Collection(petsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update pet: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchPetScan запоминает момент последнего открытия карточки по QR-коду.
func (r *MongoRepository) TouchPetScan(ctx context.Context, id string, at time.Time) error {
	return r.updatePet(ctx, id, bson.M{"lastScannedAt": at})
}

// AssignTheme устанавливает или сбрасывает активную тему питомца.
func (r *MongoRepository) AssignTheme(ctx context.Context, petID string, themeID *string) error {
	return r.updatePet(ctx, petID, bson.M{"themeId": themeID, "updatedAt": time.Now()})
}

// FindDueReminders возвращает питомцев с email владельца и неотправленным напоминанием в интервале.
func (r *MongoRepository) FindDueReminders(ctx context.Context, start, end time.Time) ([]model.Pet, error) {
	filter := bson.M{
		"owner.email": bson.M{"$ne": ""},
		"reExaminations": bson.M{"$elemMatch": bson.M{
			"date":         bson.M{"$gte": start, "$lte": end},
			"reminderSent": bson.M{"$ne": true},
		}},
	}
	return r.findPets(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// MarkReminderSent отмечает первую неотправленную запись осмотра с указанной датой.
func (r *MongoRepository) MarkReminderSent(ctx context.Context, petID string, date time.Time) (bool, error) {
	filter := bson.M{
		"_id": petID,
		"reExaminations": bson.M{"$elemMatch": bson.M{
			"date":         date,
			"reminderSent": bson.M{"$ne": true},
		}},
	}
	res, err := r.db.Collection(petsCollection).UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"reExaminations.$.reminderSent": true}})
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

type themeDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	PresetKey   string    `bson:"presetKey"`
	Description string    `bson:"description"`
	ImageURL    string    `bson:"imageUrl"`
	IsActive    bool      `bson:"isActive"`
	InStore     bool      `bson:"inStore"`
	IsPremium   bool      `bson:"isPremium"`
	PriceCents  int64     `bson:"priceCents"`
	Order       int       `bson:"order"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toThemeDoc(t model.Theme) themeDoc {
	return themeDoc{
		ID: t.ID, Name: t.Name, PresetKey: t.PresetKey, Description: t.Description, ImageURL: t.ImageURL,
		IsActive: t.IsActive, InStore: t.InStore, IsPremium: t.IsPremium,
		PriceCents: toCents(t.Price), Order: t.Order, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (d themeDoc) toModel() model.Theme {
	return model.Theme{
		ID: d.ID, Name: d.Name, PresetKey: d.PresetKey, Description: d.Description, ImageURL: d.ImageURL,
		IsActive: d.IsActive, InStore: d.InStore, IsPremium: d.IsPremium,
		Price: fromCents(d.PriceCents), Order: d.Order, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// CreateTheme сохраняет новую тему.
func (r *MongoRepository) CreateTheme(ctx context.Context, t model.Theme) error {
	if _, err := r.db.Collection(themesCollection).InsertOne(ctx, toThemeDoc(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: theme %s", ErrDuplicate, t.ID)
		}
		return fmt.Errorf("insert theme: %w", err)
	}
	return nil
}

// UpdateTheme перезаписывает атрибуты темы.
func (r *MongoRepository) UpdateTheme(ctx context.Context, t model.Theme) error {
	res, err := r.db.Collection(themesCollection).ReplaceOne(ctx, bson.M{"_id": t.ID}, toThemeDoc(t))
	if err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTheme возвращает тему по идентификатору.
func (r *MongoRepository) GetTheme(ctx context.Context, id string) (*model.Theme, error) {
	var d themeDoc
	if err := r.db.Collection(themesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get theme: %w", err)
	}
	t := d.toModel()
	return &t, nil
}

// ListThemes возвращает темы, удовлетворяющие фильтру.
func (r *MongoRepository) ListThemes(ctx context.Context, f ThemeFilter) ([]model.Theme, error) {
	filter := bson.M{}
	if f.OnlyActive {
		filter["isActive"] = true
	}
	if f.OnlyInStore {
		filter["inStore"] = true
	}
	if f.OnlyFree {
		filter["isPremium"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.db.Collection(themesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find themes: %w", err)
	}
	defer cursor.Close(ctx)

	var res []model.Theme
	for cursor.Next(ctx) {
		var d themeDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode theme: %w", err)
		}
		res = append(res, d.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return res, nil
}

type purchaseDoc struct {
	ID            string    `bson:"_id"`
	AcquirerKind  string    `bson:"acquirerKind"`
	AcquirerID    string    `bson:"acquirerId"`
	ThemeID       string    `bson:"themeId"`
	PurchasedAt   time.Time `bson:"purchasedAt"`
	TransactionID string    `bson:"transactionId"`
	AmountCents   int64     `bson:"amountCents"`
	Status        string    `bson:"status"`
}

func (d purchaseDoc) toModel() model.Purchase {
	return model.Purchase{
		ID:            d.ID,
		Acquirer:      model.Acquirer{Kind: model.AcquirerKind(d.AcquirerKind), ID: d.AcquirerID},
		ThemeID:       d.ThemeID,
		PurchasedAt:   d.PurchasedAt,
		TransactionID: d.TransactionID,
		Amount:        fromCents(d.AmountCents),
		Status:        model.PurchaseStatus(d.Status),
	}
}

// CreatePurchase сохраняет покупку. Уникальный индекс отклоняет повторную покупку темы.
func (r *MongoRepository) CreatePurchase(ctx context.Context, p model.Purchase) error {
	d := purchaseDoc{
		ID: p.ID, AcquirerKind: string(p.Acquirer.Kind), AcquirerID: p.Acquirer.ID, ThemeID: p.ThemeID,
		PurchasedAt: p.PurchasedAt, TransactionID: p.TransactionID, AmountCents: toCents(p.Amount), Status: string(p.Status),
	}
	if _, err := r.db.Collection(purchasesCollection).InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: purchase %s/%s of theme %s", ErrDuplicate, p.Acquirer.Kind, p.Acquirer.ID, p.ThemeID)
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// FindPurchase возвращает покупку темы владельцем.
func (r *MongoRepository) FindPurchase(ctx context.Context, acq model.Acquirer, themeID string) (*model.Purchase, error) {
	var d purchaseDoc
	filter := bson.M{"acquirerKind": string(acq.Kind), "acquirerId": acq.ID, "themeId": themeID}
	if err := r.db.Collection(purchasesCollection).FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	p := d.toModel()
	return &p, nil
}

// ListPurchases возвращает покупки владельца, новые первыми.
func (r *MongoRepository) ListPurchases(ctx context.Context, acq model.Acquirer) ([]model.Purchase, error) {
	filter := bson.M{"acquirerKind": string(acq.Kind), "acquirerId": acq.ID}
	opts := options.Find().SetSort(bson.D{{Key: "purchasedAt", Value: -1}})

	cursor, err := r.db.Collection(purchasesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var res []model.Purchase
	for cursor.Next(ctx) {
		var d purchaseDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode purchase: %w", err)
		}
		res = append(res, d.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return res, nil
}

type codeDoc struct {
	ID         string     `bson:"_id"`
	Code       string     `bson:"code"`
	ThemeID    string     `bson:"themeId"`
	CreatedBy  string     `bson:"createdBy"`
	RedeemedBy *string    `bson:"redeemedBy"`
	Status     string     `bson:"status"`
	ExpiresAt  time.Time  `bson:"expiresAt"`
	RedeemedAt *time.Time `bson:"redeemedAt"`
	CreatedAt  time.Time  `bson:"createdAt"`
}

func (d codeDoc) toModel() model.RedemptionCode {
	return model.RedemptionCode{
		ID: d.ID, Code: d.Code, ThemeID: d.ThemeID, CreatedBy: d.CreatedBy, RedeemedBy: d.RedeemedBy,
		Status: model.CodeStatus(d.Status), ExpiresAt: d.ExpiresAt, RedeemedAt: d.RedeemedAt, CreatedAt: d.CreatedAt,
	}
}

// CreateRedemptionCode сохраняет новый код активации.
func (r *MongoRepository) CreateRedemptionCode(ctx context.Context, c model.RedemptionCode) error {
	d := codeDoc{
		ID: c.ID, Code: c.Code, ThemeID: c.ThemeID, CreatedBy: c.CreatedBy, RedeemedBy: c.RedeemedBy,
		Status: string(c.Status), ExpiresAt: c.ExpiresAt, RedeemedAt: c.RedeemedAt, CreatedAt: c.CreatedAt,
	}
	if _, err := r.db.Collection(codesCollection).InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: redemption code", ErrDuplicate)
		}
		return fmt.Errorf("insert redemption code: %w", err)
	}
	return nil
}

// FindRedemptionCode возвращает код активации по его каноническому значению.
func (r *MongoRepository) FindRedemptionCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	var d codeDoc
	if err := r.db.Collection(codesCollection).FindOne(ctx, bson.M{"code": code}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get redemption code: %w", err)
	}
	c := d.toModel()
	return &c, nil
}

// UpdateRedemptionCodeStatus переводит активный код в новый статус либо возвращает ErrStaleState.
func (r *MongoRepository) UpdateRedemptionCodeStatus(ctx context.Context, id string, tr model.CodeTransition) error {
	res, err := r.db.Collection(codesCollection).UpdateOne(ctx,
		bson.M{"_id": id, "status": string(model.CodeStatusActive)},
		bson.M{"$set": bson.M{"status": string(tr.To), "redeemedBy": tr.RedeemedBy, "redeemedAt": tr.RedeemedAt}},
	)
	if err != nil {
		return fmt.Errorf("update redemption code: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *MongoRepository) findCodes(ctx context.Context, filter bson.M, sortField string) ([]model.RedemptionCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}})
	cursor, err := r.db.Collection(codesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find redemption codes: %w", err)
	}
	defer cursor.Close(ctx)

	var res []model.RedemptionCode
	for cursor.Next(ctx) {
		var d codeDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode redemption code: %w", err)
		}
		res = append(res, d.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return res, nil
}

// ListRedemptionCodesByCreator возвращает коды, выпущенные пользователем магазина.
func (r *MongoRepository) ListRedemptionCodesByCreator(ctx context.Context, userID string) ([]model.RedemptionCode, error) {
	return r.findCodes(ctx, bson.M{"createdBy": userID}, "createdAt")
}

// ListRedemptionsByPet возвращает коды, активированные питомцем.
func (r *MongoRepository) ListRedemptionsByPet(ctx context.Context, petID string) ([]model.RedemptionCode, error) {
	return r.findCodes(ctx, bson.M{"redeemedBy": petID, "status": string(model.CodeStatusRedeemed)}, "redeemedAt")
}

type storeUserDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash []byte    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// CreateStoreUser создаёт пользователя магазина.
func (r *MongoRepository) CreateStoreUser(ctx context.Context, u model.StoreUser) error {
	if _, err := r.db.Collection(storeUsersCollection).InsertOne(ctx, storeUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, u.Email)
		}
		return fmt.Errorf("create store user: %w", err)
	}
	return nil
}

func (r *MongoRepository) findStoreUser(ctx context.Context, filter bson.M) (*model.StoreUser, error) {
	var d storeUserDoc
	if err := r.db.Collection(storeUsersCollection).FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get store user: %w", err)
	}
	u := model.StoreUser(d)
	return &u, nil
}

// GetStoreUserByEmail возвращает пользователя магазина по email.
func (r *MongoRepository) GetStoreUserByEmail(ctx context.Context, email string) (*model.StoreUser, error) {
	return r.findStoreUser(ctx, bson.M{"email": email})
}

// GetStoreUser возвращает пользователя магазина по идентификатору.
func (r *MongoRepository) GetStoreUser(ctx context.Context, id string) (*model.StoreUser, error) {
	return r.findStoreUser(ctx, bson.M{"_id": id})
}

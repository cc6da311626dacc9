package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/pettag/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type pgTxKey struct{}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Повторяем только конфликты сериализации, взаимные блокировки и обрывы соединения.
		retryable := isConnectionError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			retryable = pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
		}

		if !retryable || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) conn(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

// InTx выполняет fn в транзакции. Вложенные вызовы используют уже открытую транзакцию.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const petColumns = `id, qr_token, qr_code_url, status, theme_id, last_scanned_at,
	info_name, info_species, info_birth_date, info_description,
	owner_name, owner_phone, owner_email,
	allergic_substances, allergic_note, vaccinations,
	created_at, updated_at`

func scanPet(row rowScanner) (*model.Pet, error) {
	var (
		p      model.Pet
		status string
	)
	err := row.Scan(
		&p.ID, &p.QRToken, &p.QRCodeURL, &status, &p.ThemeID, &p.LastScannedAt,
		&p.Info.Name, &p.Info.Species, &p.Info.BirthDate, &p.Info.Description,
		&p.Owner.Name, &p.Owner.Phone, &p.Owner.Email,
		&p.Allergic.Substances, &p.Allergic.Note, &p.Vaccinations,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.PetStatus(status)
	return &p, nil
}

// CreatePet сохраняет новую карточку питомца вместе с повторными осмотрами.
func (r *PostgresRepository) CreatePet(ctx context.Context, p model.Pet) error {
	return r.InTx(ctx, func(ctx context.Context) error {
		_, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO pets (`+petColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			p.ID, p.QRToken, p.QRCodeURL, string(p.Status), p.ThemeID, p.LastScannedAt,
			p.Info.Name, p.Info.Species, p.Info.BirthDate, p.Info.Description,
			p.Owner.Name, p.Owner.Phone, p.Owner.Email,
			nonNilStrings(p.Allergic.Substances), p.Allergic.Note, nonNilVaccinations(p.Vaccinations),
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: pet %s", ErrDuplicate, p.ID)
			}
			return fmt.Errorf("insert pet: %w", err)
		}
		return r.insertReExaminations(ctx, p.ID, p.ReExaminations)
	})
}

func (r *PostgresRepository) insertReExaminations(ctx context.Context, petID string, list []model.ReExamination) error {
	for i, re := range list {
		_, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO pet_re_examinations (pet_id, position, exam_date, note, reminder_sent)
			 VALUES ($1, $2, $3, $4, $5)`,
			petID, i, re.Date, re.Note, re.ReminderSent,
		)
		if err != nil {
			return fmt.Errorf("insert re-examination: %w", err)
		}
	}
	return nil
}

// syncReExaminations перезаписывает осмотры по позициям. Существующие строки обновляются
// на месте, лишние удаляются, поэтому идентификаторы строк сохраняются между правками.
func (r *PostgresRepository) syncReExaminations(ctx context.Context, petID string, list []model.ReExamination) error {
	for i, re := range list {
		tag, err := r.conn(ctx).Exec(ctx,
			`UPDATE pet_re_examinations SET exam_date = $3, note = $4, reminder_sent = $5
			 WHERE pet_id = $1 AND position = $2`,
			petID, i, re.Date, re.Note, re.ReminderSent,
		)
		if err != nil {
			return fmt.Errorf("update re-examination: %w", err)
		}
		if tag.RowsAffected() > 0 {
			continue
		}
		_, err = r.conn(ctx).Exec(ctx,
			`INSERT INTO pet_re_examinations (pet_id, position, exam_date, note, reminder_sent)
			 VALUES ($1, $2, $3, $4, $5)`,
			petID, i, re.Date, re.Note, re.ReminderSent,
		)
		if err != nil {
			return fmt.Errorf("insert re-examination: %w", err)
		}
	}

	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM pet_re_examinations WHERE pet_id = $1 AND position >= $2`,
		petID, len(list),
	)
	if err != nil {
		return fmt.Errorf("delete re-examinations: %w", err)
	}
	return nil
}

func (r *PostgresRepository) loadReExaminations(ctx context.Context, pets []*model.Pet) error {
	if len(pets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(pets))
	byID := make(map[string]*model.Pet, len(pets))
	for _, p := range pets {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT pet_id, exam_date, note, reminder_sent
		 FROM pet_re_examinations
		 WHERE pet_id = ANY($1)
		 ORDER BY pet_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select re-examinations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			petID string
			re    model.ReExamination
		)
		if err := rows.Scan(&petID, &re.Date, &re.Note, &re.ReminderSent); err != nil {
			return fmt.Errorf("scan re-examination: %w", err)
		}
		if p, ok := byID[petID]; ok {
			p.ReExaminations = append(p.ReExaminations, re)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) queryPets(ctx context.Context, sql string, args ...any) ([]model.Pet, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select pets: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := r.loadReExaminations(ctx, ptrs); err != nil {
		return nil, err
	}

	res := make([]model.Pet, 0, len(ptrs))
	for _, p := range ptrs {
		res = append(res, *p)
	}
	return res, nil
}

// GetPet возвращает карточку питомца по идентификатору.
func (r *PostgresRepository) GetPet(ctx context.Context, id string) (*model.Pet, error) {
	pets, err := r.queryPets(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(pets) == 0 {
		return nil, ErrNotFound
	}
	return &pets[0], nil
}

// ListPets возвращает все карточки, новые первыми.
func (r *PostgresRepository) ListPets(ctx context.Context) ([]model.Pet, error) {
	return r.queryPets(ctx, `SELECT `+petColumns+` FROM pets ORDER BY created_at DESC`)
}

// UpdatePetProfile применяет изменения владельца. Строки питомца и его осмотров блокируются,
// чтобы уже выставленные флаги напоминаний не были потеряны.
func (r *PostgresRepository) UpdatePetProfile(ctx context.Context, id string, profile model.PetProfile, now time.Time) (*model.Pet, error) {
	var updated *model.Pet

	err := r.InTx(ctx, func(ctx context.Context) error {
		pets, err := r.queryPets(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if len(pets) == 0 {
			return ErrNotFound
		}
		p := pets[0]

		// Повторная выборка под блокировкой: сканер мог отметить осмотр до захвата строки питомца.
		p.ReExaminations = nil
		if _, err := r.conn(ctx).Exec(ctx,
			`SELECT 1 FROM pet_re_examinations WHERE pet_id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("lock re-examinations: %w", err)
		}
		if err := r.loadReExaminations(ctx, []*model.Pet{&p}); err != nil {
			return err
		}

		p.Apply(profile, now)

		_, err = r.conn(ctx).Exec(ctx,
			`UPDATE pets SET
				status = $2,
				info_name = $3, info_species = $4, info_birth_date = $5, info_description = $6,
				owner_name = $7, owner_phone = $8, owner_email = $9,
				allergic_substances = $10, allergic_note = $11, vaccinations = $12,
				updated_at = $13
			 WHERE id = $1`,
			p.ID, string(p.Status),
			p.Info.Name, p.Info.Species, p.Info.BirthDate, p.Info.Description,
			p.Owner.Name, p.Owner.Phone, p.Owner.Email,
			nonNilStrings(p.Allergic.Substances), p.Allergic.Note, nonNilVaccinations(p.Vaccinations),
			p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update pet: %w", err)
		}

		if err := r.syncReExaminations(ctx, id, p.ReExaminations); err != nil {
			return err
		}

		updated = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TouchPetScan запоминает момент последнего открытия карточки по QR-коду.
func (r *PostgresRepository) TouchPetScan(ctx context.Context, id string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE pets SET last_scanned_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch pet scan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignTheme устанавливает или сбрасывает (themeID == nil) активную тему питомца.
func (r *PostgresRepository) AssignTheme(ctx context.Context, petID string, themeID *string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE pets SET theme_id = $2, updated_at = NOW() WHERE id = $1`,
		petID, themeID,
	)
	if err != nil {
		return fmt.Errorf("assign theme: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindDueReminders возвращает питомцев с email владельца и хотя бы одним неотправленным
// напоминанием о повторном осмотре в интервале [start, end].
func (r *PostgresRepository) FindDueReminders(ctx context.Context, start, end time.Time) ([]model.Pet, error) {
	return r.queryPets(ctx,
		`SELECT `+petColumns+`
		 FROM pets p
		 WHERE p.owner_email <> ''
		   AND EXISTS (
			SELECT 1 FROM pet_re_examinations re
			WHERE re.pet_id = p.id
			  AND re.exam_date BETWEEN $1 AND $2
			  AND NOT re.reminder_sent
		 )
		 ORDER BY p.id`,
		start, end,
	)
}

// markAttempts ограничивает число попыток отметки, если строку осмотра
// одновременно переписала правка профиля.
const markAttempts = 2

// MarkReminderSent отмечает ровно одну неотправленную запись осмотра питомца с указанной датой.
// Возвращает false, если такой записи уже нет.
func (r *PostgresRepository) MarkReminderSent(ctx context.Context, petID string, date time.Time) (bool, error) {
	for range markAttempts {
		// Условие по дате повторяется снаружи: если выбранную строку успела изменить
		// правка профиля, перепроверка после ожидания блокировки её отбросит.
		tag, err := r.conn(ctx).Exec(ctx,
			`UPDATE pet_re_examinations SET reminder_sent = TRUE
			 WHERE id = (
				SELECT id FROM pet_re_examinations
				WHERE pet_id = $1 AND exam_date = $2 AND NOT reminder_sent
				ORDER BY position
				LIMIT 1
			 ) AND exam_date = $2 AND NOT reminder_sent`,
			petID, date,
		)
		if err != nil {
			return false, fmt.Errorf("mark reminder sent: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return true, nil
		}
	}
	return false, nil
}

const themeColumns = `id, name, preset_key, description, image_url,
	is_active, in_store, is_premium, price_cents, sort_order, created_at, updated_at`

func scanTheme(row rowScanner) (*model.Theme, error) {
	var (
		t     model.Theme
		cents int64
	)
	err := row.Scan(&t.ID, &t.Name, &t.PresetKey, &t.Description, &t.ImageURL,
		&t.IsActive, &t.InStore, &t.IsPremium, &cents, &t.Order, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Price = fromCents(cents)
	return &t, nil
}

// CreateTheme сохраняет новую тему.
func (r *PostgresRepository) CreateTheme(ctx context.Context, t model.Theme) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO themes (`+themeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Name, t.PresetKey, t.Description, t.ImageURL,
		t.IsActive, t.InStore, t.IsPremium, toCents(t.Price), t.Order, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: theme %s", ErrDuplicate, t.ID)
		}
		return fmt.Errorf("insert theme: %w", err)
	}
	return nil
}

// UpdateTheme перезаписывает атрибуты темы.
func (r *PostgresRepository) UpdateTheme(ctx context.Context, t model.Theme) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE themes SET
			name = $2, preset_key = $3, description = $4, image_url = $5,
			is_active = $6, in_store = $7, is_premium = $8, price_cents = $9, sort_order = $10,
			updated_at = $11
		 WHERE id = $1`,
		t.ID, t.Name, t.PresetKey, t.Description, t.ImageURL,
		t.IsActive, t.InStore, t.IsPremium, toCents(t.Price), t.Order, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTheme возвращает тему по идентификатору.
func (r *PostgresRepository) GetTheme(ctx context.Context, id string) (*model.Theme, error) {
	t, err := scanTheme(r.conn(ctx).QueryRow(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get theme: %w", err)
	}
	return t, nil
}

// ListThemes возвращает темы, удовлетворяющие фильтру.
func (r *PostgresRepository) ListThemes(ctx context.Context, f ThemeFilter) ([]model.Theme, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+themeColumns+`
		 FROM themes
		 WHERE ($1 = FALSE OR is_active)
		   AND ($2 = FALSE OR in_store)
		   AND ($3 = FALSE OR NOT is_premium)
		 ORDER BY sort_order, name`,
		f.OnlyActive, f.OnlyInStore, f.OnlyFree,
	)
	if err != nil {
		return nil, fmt.Errorf("select themes: %w", err)
	}
	defer rows.Close()

	var res []model.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const purchaseColumns = `id, acquirer_kind, acquirer_id, theme_id, purchased_at, transaction_id, amount_cents, status`

func scanPurchase(row rowScanner) (*model.Purchase, error) {
	var (
		p      model.Purchase
		kind   string
		cents  int64
		status string
	)
	if err := row.Scan(&p.ID, &kind, &p.Acquirer.ID, &p.ThemeID, &p.PurchasedAt, &p.TransactionID, &cents, &status); err != nil {
		return nil, err
	}
	p.Acquirer.Kind = model.AcquirerKind(kind)
	p.Amount = fromCents(cents)
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}

// CreatePurchase сохраняет покупку. Повторная покупка той же темы тем же владельцем
// отклоняется ограничением уникальности и возвращает ErrDuplicate. ON CONFLICT не прерывает
// объемлющую транзакцию.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p model.Purchase) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO purchases (`+purchaseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT ON CONSTRAINT purchases_acquirer_theme_key DO NOTHING`,
		p.ID, string(p.Acquirer.Kind), p.Acquirer.ID, p.ThemeID, p.PurchasedAt, p.TransactionID,
		toCents(p.Amount), string(p.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: purchase %s", ErrDuplicate, p.ID)
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase %s/%s of theme %s", ErrDuplicate, p.Acquirer.Kind, p.Acquirer.ID, p.ThemeID)
	}
	return nil
}

// FindPurchase возвращает покупку темы владельцем.
func (r *PostgresRepository) FindPurchase(ctx context.Context, acq model.Acquirer, themeID string) (*model.Purchase, error) {
	p, err := scanPurchase(r.conn(ctx).QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE acquirer_kind = $1 AND acquirer_id = $2 AND theme_id = $3`,
		string(acq.Kind), acq.ID, themeID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// ListPurchases возвращает все покупки владельца, новые первыми.
func (r *PostgresRepository) ListPurchases(ctx context.Context, acq model.Acquirer) ([]model.Purchase, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE acquirer_kind = $1 AND acquirer_id = $2
		 ORDER BY purchased_at DESC`,
		string(acq.Kind), acq.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var res []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const codeColumns = `id, code, theme_id, created_by, redeemed_by, status, expires_at, redeemed_at, created_at`

func scanCode(row rowScanner) (*model.RedemptionCode, error) {
	var (
		c      model.RedemptionCode
		status string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.ThemeID, &c.CreatedBy, &c.RedeemedBy, &status, &c.ExpiresAt, &c.RedeemedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = model.CodeStatus(status)
	return &c, nil
}

// CreateRedemptionCode сохраняет новый код активации.
func (r *PostgresRepository) CreateRedemptionCode(ctx context.Context, c model.RedemptionCode) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO redemption_codes (`+codeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Code, c.ThemeID, c.CreatedBy, c.RedeemedBy, string(c.Status), c.ExpiresAt, c.RedeemedAt, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: redemption code", ErrDuplicate)
		}
		return fmt.Errorf("insert redemption code: %w", err)
	}
	return nil
}

// FindRedemptionCode возвращает код активации по его каноническому значению.
func (r *PostgresRepository) FindRedemptionCode(ctx context.Context, code string) (*model.RedemptionCode, error) {
	c, err := scanCode(r.conn(ctx).QueryRow(ctx, `SELECT `+codeColumns+` FROM redemption_codes WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get redemption code: %w", err)
	}
	return c, nil
}

// UpdateRedemptionCodeStatus переводит активный код в новый статус. Если код уже не активен,
// возвращает ErrStaleState.
func (r *PostgresRepository) UpdateRedemptionCodeStatus(ctx context.Context, id string, tr model.CodeTransition) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE redemption_codes
		 SET status = $2, redeemed_by = $3, redeemed_at = $4
		 WHERE id = $1 AND status = $5`,
		id, string(tr.To), tr.RedeemedBy, tr.RedeemedAt, string(model.CodeStatusActive),
	)
	if err != nil {
		return fmt.Errorf("update redemption code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *PostgresRepository) queryCodes(ctx context.Context, sql string, args ...any) ([]model.RedemptionCode, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select redemption codes: %w", err)
	}
	defer rows.Close()

	var res []model.RedemptionCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption code: %w", err)
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListRedemptionCodesByCreator возвращает коды, выпущенные пользователем магазина.
func (r *PostgresRepository) ListRedemptionCodesByCreator(ctx context.Context, userID string) ([]model.RedemptionCode, error) {
	return r.queryCodes(ctx,
		`SELECT `+codeColumns+` FROM redemption_codes WHERE created_by = $1 ORDER BY created_at DESC`, userID)
}

// ListRedemptionsByPet возвращает коды, активированные питомцем.
func (r *PostgresRepository) ListRedemptionsByPet(ctx context.Context, petID string) ([]model.RedemptionCode, error) {
	return r.queryCodes(ctx,
		`SELECT `+codeColumns+` FROM redemption_codes
		 WHERE redeemed_by = $1 AND status = $2
		 ORDER BY redeemed_at DESC`,
		petID, string(model.CodeStatusRedeemed))
}

// CreateStoreUser создаёт пользователя магазина.
func (r *PostgresRepository) CreateStoreUser(ctx context.Context, u model.StoreUser) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO store_users (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, u.Email)
		}
		return fmt.Errorf("create store user: %w", err)
	}
	return nil
}

// GetStoreUserByEmail возвращает пользователя магазина по email.
func (r *PostgresRepository) GetStoreUserByEmail(ctx context.Context, email string) (*model.StoreUser, error) {
	var u model.StoreUser
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM store_users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get store user: %w", err)
	}
	return &u, nil
}

// GetStoreUser возвращает пользователя магазина по идентификатору.
func (r *PostgresRepository) GetStoreUser(ctx context.Context, id string) (*model.StoreUser, error) {
	var u model.StoreUser
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM store_users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get store user: %w", err)
	}
	return &u, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilVaccinations(v []model.Vaccination) []model.Vaccination {
	if v == nil {
		return []model.Vaccination{}
	}
	return v
}

// Package reminder реализует периодический поиск предстоящих повторных осмотров
// и рассылку напоминаний владельцам питомцев.
package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/validation"
)

// Значения по умолчанию для незаполненных полей письма.
const (
	DefaultOwnerName = "Quý khách"
	DefaultPetName   = "Thú cưng"
	DefaultSpecies   = "Không xác định"
)

const (
	DefaultWindowDays  = 3
	DefaultSendTimeout = 30 * time.Second
	DefaultTimezone    = "Asia/Ho_Chi_Minh"

	dateLayout = "02/01/2006"
)

// Store описывает операции хранилища, нужные сканеру.
type Store interface {
	FindDueReminders(ctx context.Context, start, end time.Time) ([]model.Pet, error)
	MarkReminderSent(ctx context.Context, petID string, date time.Time) (bool, error)
}

// Reminder - подготовленное напоминание об одном осмотре.
type Reminder struct {
	PetID    string
	ExamDate time.Time
	// Occurrence - порядковый номер среди осмотров питомца с той же датой, начиная с нуля.
	Occurrence int
	To         string
	OwnerName  string
	PetName    string
	Species    string
	// Date - дата осмотра в формате дд/мм/гггг в часовом поясе сканера.
	Date string
	Note string
}

// Sender доставляет напоминание и возвращает идентификатор отправленного сообщения.
type Sender interface {
	Send(ctx context.Context, r Reminder) (string, error)
}

// Config содержит параметры сканера.
type Config struct {
	WindowDays  int
	Location    *time.Location
	SendTimeout time.Duration
}

// Scanner находит неотправленные напоминания в окне и рассылает их.
type Scanner struct {
	store       Store
	sender      Sender
	logger      *zap.Logger
	loc         *time.Location
	windowDays  int
	sendTimeout time.Duration
	now         func() time.Time
}

// Option настраивает Scanner.
type Option func(*Scanner)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// NewScanner создаёт сканер напоминаний.
func NewScanner(store Store, sender Sender, cfg Config, logger *zap.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		store:       store,
		sender:      sender,
		logger:      logger,
		loc:         cfg.Location,
		windowDays:  cfg.WindowDays,
		sendTimeout: cfg.SendTimeout,
		now:         time.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.windowDays <= 0 {
		s.windowDays = DefaultWindowDays
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = DefaultSendTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window возвращает интервал поиска: с начала текущих суток до конца суток через days дней,
// в часовом поясе loc. Обе границы включительно.
func Window(now time.Time, loc *time.Location, days int) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, days+1).Add(-time.Nanosecond)
	return start, end
}

// Scan выполняет один проход. В режиме dryRun напоминания только подсчитываются:
// ничего не отправляется и не отмечается.
func (s *Scanner) Scan(ctx context.Context, dryRun bool) (model.ScanSummary, error) {
	summary := model.ScanSummary{DryRun: dryRun}
	start, end := Window(s.now(), s.loc, s.windowDays)

	pets, err := s.store.FindDueReminders(ctx, start, end)
	if err != nil {
		return summary, fmt.Errorf("find due reminders: %w", err)
	}
	summary.PetsChecked = len(pets)

	for _, pet := range pets {
		if !validation.IsValidEmail(pet.Owner.Email) {
			s.logger.Warn("skip pet with invalid owner email", zap.String("pet_id", pet.ID))
			continue
		}

		seen := make(map[int64]int, len(pet.ReExaminations))
		for _, re := range pet.ReExaminations {
			occurrence := seen[re.Date.UnixMilli()]
			seen[re.Date.UnixMilli()]++

			if re.ReminderSent || re.Date.Before(start) || re.Date.After(end) {
				continue
			}
			summary.RemindersDue++

			if dryRun {
				continue
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			if s.deliver(ctx, pet, re, occurrence) {
				summary.RemindersSent++
			} else {
				summary.RemindersFailed++
			}
		}
	}

	s.logger.Info("reminder scan finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("pets_checked", summary.PetsChecked),
		zap.Int("reminders_due", summary.RemindersDue),
		zap.Int("reminders_sent", summary.RemindersSent),
		zap.Int("reminders_failed", summary.RemindersFailed),
	)
	return summary, nil
}

func (s *Scanner) deliver(ctx context.Context, pet model.Pet, re model.ReExamination, occurrence int) bool {
	r := s.compose(pet, re)
	r.Occurrence = occurrence

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	msgID, err := s.sender.Send(sendCtx, r)
	cancel()
	if err != nil {
		s.logger.Error("failed to send reminder",
			zap.String("pet_id", pet.ID),
			zap.Time("exam_date", re.Date),
			zap.Error(err),
		)
		return false
	}

	marked, err := s.store.MarkReminderSent(ctx, pet.ID, re.Date)
	if err != nil {
		s.logger.Error("reminder sent but not marked",
			zap.String("pet_id", pet.ID),
			zap.Time("exam_date", re.Date),
			zap.String("message_id", msgID),
			zap.Error(err),
		)
		return false
	}
	if !marked {
		s.logger.Warn("reminder already marked",
			zap.String("pet_id", pet.ID),
			zap.Time("exam_date", re.Date),
		)
	}

	s.logger.Info("reminder sent",
		zap.String("pet_id", pet.ID),
		zap.Time("exam_date", re.Date),
		zap.String("message_id", msgID),
	)
	return true
}

func (s *Scanner) compose(pet model.Pet, re model.ReExamination) Reminder {
	return Reminder{
		PetID:     pet.ID,
		ExamDate:  re.Date,
		To:        pet.Owner.Email,
		OwnerName: orDefault(pet.Owner.Name, DefaultOwnerName),
		PetName:   orDefault(pet.Info.Name, DefaultPetName),
		Species:   orDefault(pet.Info.Species, DefaultSpecies),
		Date:      re.Date.In(s.loc).Format(dateLayout),
		Note:      re.Note,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

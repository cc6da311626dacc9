package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
)

type stubSender struct {
	mu    sync.Mutex
	sent  []Reminder
	err   error
	delay time.Duration
}

func (s *stubSender) Send(ctx context.Context, r Reminder) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, r)
	return "msg-" + r.PetID, nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var hcm = mustLoad("Asia/Ho_Chi_Minh")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// 2026-10-19 10:00 по Хошимину.
var scanNow = time.Date(2026, 10, 19, 10, 0, 0, 0, hcm)

func newScanner(store Store, sender Sender) *Scanner {
	return NewScanner(store, sender, Config{Location: hcm, SendTimeout: 50 * time.Millisecond}, nil,
		WithClock(func() time.Time { return scanNow }))
}

func createPet(t *testing.T, repo *repository.MemoryRepository, p model.Pet) {
	t.Helper()
	if p.QRToken == "" {
		p.QRToken = "qr-" + p.ID
	}
	require.NoError(t, repo.CreatePet(context.Background(), p))
}

func TestWindow(t *testing.T) {
	start, end := Window(scanNow, hcm, 3)

	assert.True(t, start.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, hcm)), "start = %s", start)
	assert.True(t, end.Equal(time.Date(2026, 10, 22, 23, 59, 59, 999999999, hcm)), "end = %s", end)

	// 23:30 UTC 18 октября - это уже 19 октября по Хошимину.
	start, _ = Window(time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC), hcm, 3)
	assert.Equal(t, 19, start.Day())
}

func TestScan_SendsTomorrowReminderOnce(t *testing.T) {
	repo := repository.NewMemoryRepository()
	tomorrow := time.Date(2026, 10, 20, 9, 0, 0, 0, hcm)
	createPet(t, repo, model.Pet{
		ID:             "P",
		Info:           model.PetInfo{Name: "Milu", Species: "Cat"},
		Owner:          model.Owner{Name: "An", Email: "an@example.com"},
		ReExaminations: []model.ReExamination{{Date: tomorrow, Note: "fasting"}},
	})

	sender := &stubSender{}
	sc := newScanner(repo, sender)

	summary, err := sc.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, model.ScanSummary{PetsChecked: 1, RemindersDue: 1, RemindersSent: 1}, summary)

	require.Equal(t, 1, sender.count())
	r := sender.sent[0]
	assert.Equal(t, "an@example.com", r.To)
	assert.Equal(t, "20/10/2026", r.Date)
	assert.Equal(t, "Milu", r.PetName)
	assert.Equal(t, "fasting", r.Note)

	p, err := repo.GetPet(context.Background(), "P")
	require.NoError(t, err)
	assert.True(t, p.ReExaminations[0].ReminderSent)

	summary, err = sc.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RemindersSent)
	assert.Equal(t, 1, sender.count(), "rescan must not resend")
}

func TestScan_OneSendPerEntry(t *testing.T) {
	repo := repository.NewMemoryRepository()
	d1 := time.Date(2026, 10, 19, 15, 0, 0, 0, hcm)
	d2 := time.Date(2026, 10, 22, 8, 0, 0, 0, hcm)
	outside := time.Date(2026, 10, 23, 0, 0, 0, 0, hcm)
	past := time.Date(2026, 10, 18, 23, 59, 0, 0, hcm)

	createPet(t, repo, model.Pet{
		ID:    "P",
		Owner: model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{
			{Date: d1},
			{Date: d2},
			{Date: d2},
			{Date: outside},
			{Date: past},
			{Date: d1, ReminderSent: true},
		},
	})

	sender := &stubSender{}
	summary, err := newScanner(repo, sender).Scan(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RemindersDue)
	assert.Equal(t, 3, summary.RemindersSent)
	assert.Equal(t, 3, sender.count())

	occurrences := make([]int, 0, len(sender.sent))
	for _, r := range sender.sent {
		occurrences = append(occurrences, r.Occurrence)
	}
	assert.Equal(t, []int{0, 0, 1}, occurrences, "entries sharing a date are numbered in order")

	p, err := repo.GetPet(context.Background(), "P")
	require.NoError(t, err)
	assert.False(t, p.ReExaminations[3].ReminderSent)
	assert.False(t, p.ReExaminations[4].ReminderSent)
	for _, re := range p.ReExaminations[:3] {
		assert.True(t, re.ReminderSent)
	}
}

func TestScan_DefaultsForEmptyFields(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{}
	_, err := newScanner(repo, sender).Scan(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, DefaultOwnerName, sender.sent[0].OwnerName)
	assert.Equal(t, DefaultPetName, sender.sent[0].PetName)
	assert.Equal(t, DefaultSpecies, sender.sent[0].Species)
}

func TestScan_FailedSendIsRetriedNextTick(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{err: errors.New("smtp down")}
	sc := newScanner(repo, sender)

	summary, err := sc.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RemindersFailed)
	assert.Equal(t, 0, summary.RemindersSent)

	sender.err = nil
	summary, err = sc.Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RemindersSent)
}

func TestScan_SendTimeoutCountsAsFailure(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{delay: time.Second}
	summary, err := newScanner(repo, sender).Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RemindersFailed)

	p, err := repo.GetPet(context.Background(), "P")
	require.NoError(t, err)
	assert.False(t, p.ReExaminations[0].ReminderSent)
}

func TestScan_InvalidEmailCountedAsChecked(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "not-an-email"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{}
	summary, err := newScanner(repo, sender).Scan(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PetsChecked)
	assert.Equal(t, 0, summary.RemindersDue)
	assert.Equal(t, 0, sender.count())
}

func TestScan_DryRun(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}, {Date: scanNow.Add(24 * time.Hour)}},
	})

	sender := &stubSender{}
	summary, err := newScanner(repo, sender).Scan(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, model.ScanSummary{PetsChecked: 1, RemindersDue: 2, DryRun: true}, summary)
	assert.Equal(t, 0, sender.count())

	p, err := repo.GetPet(context.Background(), "P")
	require.NoError(t, err)
	assert.False(t, p.ReExaminations[0].ReminderSent)
}

type failingStore struct{}

func (failingStore) FindDueReminders(context.Context, time.Time, time.Time) ([]model.Pet, error) {
	return nil, errors.New("db down")
}

func (failingStore) MarkReminderSent(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func TestScan_StoreError(t *testing.T) {
	_, err := newScanner(failingStore{}, &stubSender{}).Scan(context.Background(), false)
	assert.Error(t, err)
}

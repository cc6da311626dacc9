package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/repository"
)

func TestLocalGuard(t *testing.T) {
	g := &LocalGuard{}

	release, ok, err := g.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	_, ok, _ = g.TryAcquire(context.Background())
	assert.True(t, ok)
}

type busyGuard struct{}

func (busyGuard) TryAcquire(context.Context) (func(), bool, error) { return nil, false, nil }

func TestScheduler_RunOnStartAndStop(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{}
	sched := NewScheduler(newScanner(repo, sender), SchedulerConfig{Interval: time.Hour, RunOnStart: true}, nil)

	require.NoError(t, sched.Start(context.Background()))
	assert.ErrorIs(t, sched.Start(context.Background()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	sched.Stop()
	sched.Stop()
}

func TestScheduler_SkipsWhenGuardBusy(t *testing.T) {
	repo := repository.NewMemoryRepository()
	createPet(t, repo, model.Pet{
		ID:             "P",
		Owner:          model.Owner{Email: "owner@example.com"},
		ReExaminations: []model.ReExamination{{Date: scanNow}},
	})

	sender := &stubSender{}
	sched := NewScheduler(newScanner(repo, sender), SchedulerConfig{Interval: 10 * time.Millisecond, Guard: busyGuard{}}, nil)

	require.NoError(t, sched.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	assert.Equal(t, 0, sender.count())
}

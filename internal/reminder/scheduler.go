package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval - период запуска сканера по умолчанию.
const DefaultInterval = 15 * time.Minute

// Guard не допускает одновременных проходов сканера.
type Guard interface {
	// TryAcquire возвращает false, если проход уже выполняется.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalGuard ограничивает проходы в пределах одного процесса.
type LocalGuard struct {
	running atomic.Bool
}

// TryAcquire реализует Guard.
func (g *LocalGuard) TryAcquire(context.Context) (func(), bool, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { g.running.Store(false) }, true, nil
}

// Scheduler периодически запускает Scanner.
type Scheduler struct {
	scanner    *Scanner
	interval   time.Duration
	guard      Guard
	runOnStart bool
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerConfig содержит параметры планировщика.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	// Guard по умолчанию - LocalGuard.
	Guard Guard
}

// ErrAlreadyStarted возвращается при повторном вызове Start.
var ErrAlreadyStarted = errors.New("scheduler already started")

// NewScheduler создаёт планировщик.
func NewScheduler(scanner *Scanner, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Guard == nil {
		cfg.Guard = &LocalGuard{}
	}
	return &Scheduler{
		scanner:    scanner,
		interval:   cfg.Interval,
		guard:      cfg.Guard,
		runOnStart: cfg.RunOnStart,
		logger:     logger,
	}
}

// Start запускает фоновый цикл. Цикл завершается при отмене ctx или вызове Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop останавливает цикл и дожидается завершения текущего прохода.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick выполняет один проход, если другой проход не выполняется.
func (s *Scheduler) tick(ctx context.Context) {
	release, ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("failed to acquire scan guard", zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("reminder scan already running, tick skipped")
		return
	}
	defer release()

	if _, err := s.scanner.Scan(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("reminder scan failed", zap.Error(err))
	}
}

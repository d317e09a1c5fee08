// Package scheduler runs the engine's one-shot timers and its periodic jobs.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Kind names a timer.
type Kind string

const (
	KindGrace   Kind = "grace"
	KindWarning Kind = "warning"
	// KindRecheck fires when an approved record stops shielding the item.
	KindRecheck Kind = "recheck"
)

const (
	timerPrefix = "timer:"
	// timerRetention keeps a timer entry around after its due time so a restart can still fire it.
	timerRetention = 24 * time.Hour
)

type armed struct {
	timer *time.Timer
}

// Job is a timer due for one item.
type Job struct {
	Kind   Kind
	ItemID string
}

// Handler runs a due job.
type Handler func(ctx context.Context, job Job) error

// Scheduler schedules one-shot jobs. There is no cancellation: handlers re-check conditions when
// they run.
type Scheduler interface {
	Schedule(ctx context.Context, job Job, at time.Time) error
}

// TimerScheduler persists timers in the store and arms them in process, so timers survive restarts.
// Scheduling the same job again replaces the earlier due time.
type TimerScheduler struct {
	store   store.Store
	handler Handler
	sem     *semaphore.Weighted
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	timers  map[string]*armed
	baseCtx context.Context
	stopped bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates a scheduler running at most concurrency handlers at once.
func NewTimerScheduler(s store.Store, handler Handler, concurrency int64, logger *zap.Logger) *TimerScheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TimerScheduler{
		store:   s,
		handler: handler,
		sem:     semaphore.NewWeighted(concurrency),
		logger:  logger,
		now:     time.Now,
		timers:  make(map[string]*armed),
		baseCtx: context.Background(),
	}
}

func timerKey(job Job) string {
	return timerPrefix + string(job.Kind) + ":" + job.ItemID
}

func parseTimerKey(key string) (Job, bool) {
	rest, ok := strings.CutPrefix(key, timerPrefix)
	if !ok {
		return Job{}, false
	}
	kind, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return Job{}, false
	}
	switch Kind(kind) {
	case KindGrace, KindWarning, KindRecheck:
		return Job{Kind: Kind(kind), ItemID: id}, true
	}
	return Job{}, false
}

// Schedule persists the job and arms it.
func (s *TimerScheduler) Schedule(ctx context.Context, job Job, at time.Time) error {
	id, err := repository.SanitizeItemID(job.ItemID)
	if err != nil {
		return err
	}
	job.ItemID = id

	ttl := at.Sub(s.now()) + timerRetention
	if ttl < timerRetention {
		ttl = timerRetention
	}
	if err := s.store.Set(ctx, timerKey(job), strconv.FormatInt(at.Unix(), 10), ttl); err != nil {
		return fmt.Errorf("failed to persist %s timer: %w", job.Kind, err)
	}

	s.arm(job, at)
	s.logger.Info("Timer scheduled", zap.String("kind", string(job.Kind)), zap.String("item_id", job.ItemID), zap.Time("at", at))
	return nil
}

// Start re-arms the timers persisted by a previous process. Overdue timers fire right away.
func (s *TimerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	keys, err := s.store.ScanPrefix(ctx, timerPrefix)
	if err != nil {
		return fmt.Errorf("failed to load persisted timers: %w", err)
	}

	restored := 0
	for _, key := range keys {
		job, ok := parseTimerKey(key)
		if !ok {
			s.logger.Warn("Ignoring unknown timer entry", zap.String("key", key))
			continue
		}
		value, ok, err := s.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		unix, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.logger.Warn("Discarding malformed timer entry", zap.String("key", key), zap.Error(err))
			_ = s.store.Delete(ctx, key)
			continue
		}
		s.arm(job, time.Unix(unix, 0))
		restored++
	}

	s.logger.Info("Timer scheduler started", zap.Int("restored", restored))
	return nil
}

// Stop disarms pending timers and waits for running handlers. Persisted timers are kept for the
// next start.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) arm(job Job, at time.Time) {
	key := timerKey(job)
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
	}
	a := &armed{}
	a.timer = time.AfterFunc(delay, func() { s.fire(key, a, job) })
	s.timers[key] = a
}

func (s *TimerScheduler) fire(key string, a *armed, job Job) {
	s.mu.Lock()
	if s.stopped || s.timers[key] != a {
		// Replaced or stopped after the timer had already fired.
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	log := s.logger.With(zap.String("kind", string(job.Kind)), zap.String("item_id", job.ItemID))
	if err := s.handler(ctx, job); err != nil {
		log.Error("Timer handler failed", zap.Error(err))
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn("Failed to delete fired timer", zap.Error(err))
	}
}

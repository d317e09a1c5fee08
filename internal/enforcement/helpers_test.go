package enforcement

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform/platformtest"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"go.uber.org/zap/zaptest"
)

type scheduled struct {
	Job scheduler.Job
	At  time.Time
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
	err  error
}

func (s *fakeScheduler) Schedule(_ context.Context, job scheduler.Job, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, scheduled{Job: job, At: at})
	return nil
}

func (s *fakeScheduler) Jobs() []scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduled(nil), s.jobs...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingEmitter) Emit(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) Types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine   *Engine
	platform *platformtest.Fake
	records  repository.RecordRepository
	store    *store.MemoryStore
	timers   *fakeScheduler
	events   *recordingEmitter
	clock    *clock
	start    time.Time
}

func testRules() config.Rules {
	rules := config.DefaultRules()
	rules.GracePeriodMinutes = 5
	rules.WarningPeriodMinutes = 10
	rules.EnforcementAction = config.ActionRemove
	rules.Explanation.MinLength = 50
	rules.Explanation.FlagForReviewLength = 75
	return rules
}

func newHarness(t *testing.T, rules config.Rules) *harness {
	return newHarnessWith(t, rules, func(s *store.MemoryStore) store.Store { return s })
}

// newHarnessWith lets a test put a wrapper between the records and the memory store.
func newHarnessWith(t *testing.T, rules config.Rules, wrap func(*store.MemoryStore) store.Store) *harness {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &clock{now: start}
	s := store.NewMemoryStore(c.Now)
	logger := zaptest.NewLogger(t)
	records := repository.NewRecordRepository(wrap(s), repository.TTLs{
		Processed: 24 * time.Hour,
		Warned:    7 * 24 * time.Hour,
		Removed:   30 * 24 * time.Hour,
		Approved:  7 * 24 * time.Hour,
	}, logger)
	fake := platformtest.New()
	timers := &fakeScheduler{}
	events := &recordingEmitter{}

	engine := NewEngine(records, fake, events, timers, Options{
		Rules:       rules,
		Appeals:     config.AppealConfig{Host: "https://www.reddit.com", Channel: "/r/eu4"},
		BotUsername: "ppbot",
		SweepLimit:  50,
		Now:         c.Now,
	}, logger)

	return &harness{
		engine:   engine,
		platform: fake,
		records:  records,
		store:    s,
		timers:   timers,
		events:   events,
		clock:    c,
		start:    start,
	}
}

func strPtr(s string) *string { return &s }

// count returns how often an event type was emitted.
func (r *recordingEmitter) count(t notify.EventType) int {
	n := 0
	for _, got := range r.Types() {
		if got == t {
			n++
		}
	}
	return n
}

func (h *harness) addImage(id, author string) {
	h.platform.AddItem(models.ContentItem{
		ID:        id,
		Author:    strPtr(author),
		Title:     "Map of " + id,
		Permalink: "/r/eu4/comments/" + id + "/map/",
		CreatedAt: h.clock.Now(),
		Type:      models.ItemTypeImage,
		URL:       "https://i.redd.it/" + id + ".png",
	})
}

func (h *harness) explain(itemID, author string, length int) {
	h.platform.AddComment(models.Comment{
		ID:        "expl_" + itemID,
		ItemID:    itemID,
		Author:    author,
		Body:      strings.Repeat("x", length),
		CreatedAt: h.clock.Now(),
		TopLevel:  true,
	})
}

// fire runs the most recent job of the given kind.
func (h *harness) fire(t *testing.T, kind scheduler.Kind) error {
	t.Helper()
	jobs := h.timers.Jobs()
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i].Job.Kind == kind {
			return h.engine.HandleTimer(context.Background(), jobs[i].Job)
		}
	}
	t.Fatalf("no %s timer scheduled", kind)
	return nil
}

package scheduler

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type jobRecorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (r *jobRecorder) handle(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *jobRecorder) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

func TestTimerScheduler_FiresAndForgets(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	rec := &jobRecorder{}
	ts := NewTimerScheduler(s, rec.handle, 2, zaptest.NewLogger(t))
	require.NoError(t, ts.Start(ctx))
	defer ts.Stop()

	require.NoError(t, ts.Schedule(ctx, Job{Kind: KindGrace, ItemID: "ABC"}, time.Now().Add(20*time.Millisecond)))

	_, ok, err := s.Get(ctx, "timer:grace:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Eventually(t, func() bool { return len(rec.Jobs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Job{Kind: KindGrace, ItemID: "abc"}, rec.Jobs()[0])

	require.Eventually(t, func() bool {
		_, ok, _ := s.Get(ctx, "timer:grace:abc")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, ts.Pending())
}

func TestTimerScheduler_RescheduleReplaces(t *testing.T) {
	ctx := context.Background()
	rec := &jobRecorder{}
	ts := NewTimerScheduler(store.NewMemoryStore(nil), rec.handle, 1, zaptest.NewLogger(t))
	defer ts.Stop()

	job := Job{Kind: KindWarning, ItemID: "abc"}
	require.NoError(t, ts.Schedule(ctx, job, time.Now().Add(time.Hour)))
	require.NoError(t, ts.Schedule(ctx, job, time.Now().Add(10*time.Millisecond)))
	assert.Equal(t, 1, ts.Pending())

	require.Eventually(t, func() bool { return len(rec.Jobs()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, rec.Jobs(), 1)
}

func TestTimerScheduler_RejectsBadIDs(t *testing.T) {
	ts := NewTimerScheduler(store.NewMemoryStore(nil), (&jobRecorder{}).handle, 1, zaptest.NewLogger(t))
	err := ts.Schedule(context.Background(), Job{Kind: KindGrace, ItemID: "a:b"}, time.Now())
	assert.Error(t, err)
}

func TestTimerScheduler_RestoresPersistedTimers(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	// Left behind by a previous process: one overdue, one far in the future, one junk entry.
	require.NoError(t, s.Set(ctx, "timer:warning:overdue", strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10), time.Hour))
	require.NoError(t, s.Set(ctx, "timer:grace:later", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10), 2*time.Hour))
	require.NoError(t, s.Set(ctx, "timer:grace:junk", "soon", time.Hour))
	require.NoError(t, s.Set(ctx, "timer:other:x", "1", time.Hour))

	rec := &jobRecorder{}
	ts := NewTimerScheduler(s, rec.handle, 1, zaptest.NewLogger(t))
	require.NoError(t, ts.Start(ctx))

	require.Eventually(t, func() bool { return len(rec.Jobs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Job{Kind: KindWarning, ItemID: "overdue"}, rec.Jobs()[0])

	ts.Stop()
	assert.Zero(t, ts.Pending())

	// Stopping keeps the pending timer for the next process.
	_, ok, err := s.Get(ctx, "timer:grace:later")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.Get(ctx, "timer:grace:junk")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimerScheduler_BoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	var running, peak int32
	release := make(chan struct{})
	var done sync.WaitGroup
	done.Add(3)

	handler := func(ctx context.Context, job Job) error {
		defer done.Done()
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return nil
	}

	ts := NewTimerScheduler(store.NewMemoryStore(nil), handler, 1, zaptest.NewLogger(t))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, ts.Schedule(ctx, Job{Kind: KindGrace, ItemID: id}, time.Now()))
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	close(release)
	done.Wait()
	ts.Stop()
}

func TestParseTimerKey(t *testing.T) {
	job, ok := parseTimerKey("timer:grace:abc")
	assert.True(t, ok)
	assert.Equal(t, Job{Kind: KindGrace, ItemID: "abc"}, job)

	job, ok = parseTimerKey("timer:recheck:abc")
	assert.True(t, ok)
	assert.Equal(t, Job{Kind: KindRecheck, ItemID: "abc"}, job)

	for _, key := range []string{"timer:grace:", "timer:grace", "warned:abc", "timer:nap:abc"} {
		_, ok := parseTimerKey(key)
		assert.False(t, ok, key)
	}
}

func TestPeriodic(t *testing.T) {
	p := NewPeriodic(zaptest.NewLogger(t))
	assert.Error(t, p.Add("broken", "not a schedule", func(context.Context) {}))

	var runs int32
	require.NoError(t, p.Add("tick", "@every 1s", func(ctx context.Context) {
		assert.NotNil(t, ctx)
		atomic.AddInt32(&runs, 1)
	}))

	p.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)
	p.Stop()
}

package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/netmon"
	"github.com/dmitrijs2005/gutscan/internal/common"
)

type fakeGate struct {
	mu        sync.Mutex
	reachable bool
	quality   int
	events    chan netmon.Event
}

func newFakeGate(reachable bool, quality int) *fakeGate {
	return &fakeGate{reachable: reachable, quality: quality, events: make(chan netmon.Event, 8)}
}

func (g *fakeGate) set(reachable bool, quality int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reachable, g.quality = reachable, quality
}

func (g *fakeGate) IsReachable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachable
}

func (g *fakeGate) CurrentQuality() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.quality
}

func (g *fakeGate) Subscribe() (<-chan netmon.Event, func()) {
	return g.events, func() {}
}

// fakeClock is shared by the queue and the coordinator.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memQueue struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[int64]*models.QueuedScan
	nextID  int64
	failOn  string // operation to fail with errQueue
}

var errQueue = errors.New("queue write failed")

func newMemQueue(clock func() time.Time) *memQueue {
	return &memQueue{clock: clock, entries: make(map[int64]*models.QueuedScan)}
}

func (q *memQueue) add(foodKey string, at time.Time) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.entries[q.nextID] = &models.QueuedScan{
		ID:         q.nextID,
		ClientID:   "client-" + foodKey,
		FoodKey:    foodKey,
		RecordedAt: at,
		State:      models.SyncPending,
	}
	return q.nextID
}

func (q *memQueue) get(id int64) models.QueuedScan {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.entries[id]
}

func (q *memQueue) PendingScans(ctx context.Context) ([]models.QueuedScan, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.QueuedScan
	for _, e := range q.entries {
		if e.State != models.SyncSynced {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *memQueue) update(op string, id int64, fn func(e *models.QueuedScan)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failOn == op {
		return errQueue
	}
	e, ok := q.entries[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(e)
	return nil
}

func (q *memQueue) MarkSyncing(ctx context.Context, id int64) error {
	return q.update("syncing", id, func(e *models.QueuedScan) { e.State = models.SyncSyncing })
}

func (q *memQueue) MarkSynced(ctx context.Context, id int64) error {
	return q.update("synced", id, func(e *models.QueuedScan) {
		e.State = models.SyncSynced
		e.LastAttemptAt = q.clock()
		e.LastError = ""
	})
}

func (q *memQueue) MarkFailed(ctx context.Context, id int64, cause error) error {
	return q.update("failed", id, func(e *models.QueuedScan) {
		e.State = models.SyncFailed
		e.Attempts++
		e.LastAttemptAt = q.clock()
		e.LastError = cause.Error()
	})
}

func (q *memQueue) ResetStuck(ctx context.Context, maxAttempts int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.State == models.SyncFailed && e.Attempts >= maxAttempts {
			e.State, e.Attempts, e.LastAttemptAt, e.LastError = models.SyncPending, 0, time.Time{}, ""
			n++
		}
	}
	return n, nil
}

func (q *memQueue) CountPending(ctx context.Context) (int, error) {
	list, _ := q.PendingScans(ctx)
	return len(list), nil
}

func (q *memQueue) CountStuck(ctx context.Context, maxAttempts int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.State == models.SyncFailed && e.Attempts >= maxAttempts {
			n++
		}
	}
	return n, nil
}

func (q *memQueue) StuckScans(ctx context.Context, maxAttempts int) ([]models.QueuedScan, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.QueuedScan
	for _, e := range q.entries {
		if e.State == models.SyncFailed && e.Attempts >= maxAttempts {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeRemote records submissions in order; fail decides the outcome.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	fail  func(ctx context.Context, scan models.QueuedScan) error
}

func (r *fakeRemote) SubmitScan(ctx context.Context, scan models.QueuedScan) error {
	r.mu.Lock()
	r.calls = append(r.calls, scan.FoodKey)
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return fail(ctx, scan)
	}
	return nil
}

func (r *fakeRemote) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

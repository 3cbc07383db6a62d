// Package syncer drives delivery of queued scans to the remote endpoint.
//
// A Coordinator drains the offline queue oldest first, one entry at a time,
// whenever the link is good enough: on every online transition, on a coarse
// timer and on manual request. Failed entries back off individually and are
// parked after MaxAttempts failures until a manual resync.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/netmon"
	"github.com/dmitrijs2005/gutscan/internal/logging"
)

// Gate reports link state. *netmon.Monitor implements it.
type Gate interface {
	IsReachable() bool
	CurrentQuality() int
	Subscribe() (<-chan netmon.Event, func())
}

// Queue is the persistent scan queue. *cache.Cache implements it.
type Queue interface {
	PendingScans(ctx context.Context) ([]models.QueuedScan, error)
	MarkSyncing(ctx context.Context, id int64) error
	MarkSynced(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
	ResetStuck(ctx context.Context, maxAttempts int) (int64, error)
	CountPending(ctx context.Context) (int, error)
	CountStuck(ctx context.Context, maxAttempts int) (int, error)
	StuckScans(ctx context.Context, maxAttempts int) ([]models.QueuedScan, error)
}

// Submitter delivers one scan. It must be safe to repeat for the same
// ClientID.
type Submitter interface {
	SubmitScan(ctx context.Context, scan models.QueuedScan) error
}

type Options struct {
	QualityThreshold int
	MaxAttempts      int
	SubmitTimeout    time.Duration
	SyncInterval     time.Duration
	Backoff          Policy
}

func DefaultOptions() Options {
	return Options{
		QualityThreshold: 50,
		MaxAttempts:      8,
		SubmitTimeout:    10 * time.Second,
		SyncInterval:     time.Minute,
		Backoff:          DefaultPolicy(),
	}
}

// Report summarizes one drain pass.
type Report struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Synced      int       `json:"synced"`
	Failed      int       `json:"failed"`
	Deferred    int       `json:"deferred"`    // still backing off
	Stuck       int       `json:"stuck"`       // at MaxAttempts, skipped
	Skipped     bool      `json:"skipped"`     // link not good enough to start
	Interrupted bool      `json:"interrupted"` // stopped before the end of the queue
}

type Stats struct {
	Pending    int     `json:"pending"`
	Stuck      int     `json:"stuck"`
	LastReport *Report `json:"last_report,omitempty"`
}

type Coordinator struct {
	gate   Gate
	queue  Queue
	remote Submitter
	opts   Options
	log    logging.Logger
	now    func() time.Time

	drainMu sync.Mutex // one drain at a time

	mu         sync.Mutex
	lastReport *Report
	drainStop  context.CancelFunc

	trigger chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(gate Gate, queue Queue, remote Submitter, opts Options, logger logging.Logger) *Coordinator {
	def := DefaultOptions()
	// Zero is a valid threshold: sync on any reachable link.
	if opts.QualityThreshold < 0 {
		opts.QualityThreshold = def.QualityThreshold
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = def.SubmitTimeout
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = def.SyncInterval
	}
	if opts.Backoff == (Policy{}) {
		opts.Backoff = def.Backoff
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		gate:    gate,
		queue:   queue,
		remote:  remote,
		opts:    opts,
		log:     logger.With("module", "syncer"),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
}

// ShouldSync is true when the link is up and its quality reaches the
// threshold.
func (c *Coordinator) ShouldSync() bool {
	return c.gate.IsReachable() && c.gate.CurrentQuality() >= c.opts.QualityThreshold
}

// DrainQueue makes one pass over the queue in FIFO order. It stops starting
// new submissions once ShouldSync turns false or ctx is done; a submission
// already in flight runs to completion or SubmitTimeout. Only queue
// (persistence) errors are returned.
func (c *Coordinator) DrainQueue(ctx context.Context) (Report, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	rep := Report{StartedAt: c.now()}
	defer func() {
		rep.FinishedAt = c.now()
		c.mu.Lock()
		r := rep
		c.lastReport = &r
		c.mu.Unlock()
	}()

	if !c.ShouldSync() {
		rep.Skipped = true
		return rep, nil
	}

	entries, err := c.queue.PendingScans(ctx)
	if err != nil {
		return rep, err
	}

	for _, q := range entries {
		if ctx.Err() != nil || !c.ShouldSync() {
			rep.Interrupted = true
			break
		}
		if q.Attempts >= c.opts.MaxAttempts {
			rep.Stuck++
			continue
		}
		if !c.opts.Backoff.Ready(q.Attempts, q.LastAttemptAt, c.now()) {
			rep.Deferred++
			continue
		}

		synced, err := c.submit(ctx, q)
		if err != nil {
			return rep, err
		}
		if synced {
			rep.Synced++
		} else {
			rep.Failed++
		}
	}

	c.log.Info(ctx, "drain finished", "synced", rep.Synced, "failed", rep.Failed,
		"deferred", rep.Deferred, "stuck", rep.Stuck, "interrupted", rep.Interrupted)
	return rep, nil
}

// submit delivers q on a context detached from drain cancellation and
// records the outcome.
func (c *Coordinator) submit(ctx context.Context, q models.QueuedScan) (bool, error) {
	// once started, an entry must reach synced or failed even if the drain
	// is cancelled meanwhile
	rctx := context.WithoutCancel(ctx)
	if err := c.queue.MarkSyncing(rctx, q.ID); err != nil {
		return false, err
	}

	sctx, cancel := context.WithTimeout(rctx, c.opts.SubmitTimeout)
	err := c.remote.SubmitScan(sctx, q)
	cancel()

	if err == nil {
		return true, c.queue.MarkSynced(rctx, q.ID)
	}

	c.log.Warn(ctx, "scan submission failed", "id", q.ID, "attempt", q.Attempts+1, "error", err)
	if q.Attempts+1 >= c.opts.MaxAttempts {
		c.log.Error(ctx, "scan parked after too many failures", "id", q.ID, "client_id", q.ClientID)
	}
	return false, c.queue.MarkFailed(rctx, q.ID, err)
}

// Trigger requests a drain from the background loop. Requests arriving
// while a drain runs coalesce into one follow-up drain.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Resync makes parked and backing-off entries eligible again and triggers
// a drain.
func (c *Coordinator) Resync(ctx context.Context) (int64, error) {
	n, err := c.queue.ResetStuck(ctx, 0)
	if err != nil {
		return 0, err
	}
	c.log.Info(ctx, "manual resync", "reset", n)
	c.Trigger()
	return n, nil
}

// Stuck lists the entries parked after MaxAttempts failures.
func (c *Coordinator) Stuck(ctx context.Context) ([]models.QueuedScan, error) {
	return c.queue.StuckScans(ctx, c.opts.MaxAttempts)
}

func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	pending, err := c.queue.CountPending(ctx)
	if err != nil {
		return Stats{}, err
	}
	stuck, err := c.queue.CountStuck(ctx, c.opts.MaxAttempts)
	if err != nil {
		return Stats{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Pending: pending, Stuck: stuck}
	if c.lastReport != nil {
		r := *c.lastReport
		st.LastReport = &r
	}
	return st, nil
}

// Start runs the background loop until ctx is done or Shutdown is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}

	events, unsubscribe := c.gate.Subscribe()
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unsubscribe()
		c.run(ctx, events)
	}()
}

// Shutdown stops the loop, cancels a running drain between entries and waits.
func (c *Coordinator) Shutdown() {
	c.runMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, events <-chan netmon.Event) {
	ticker := time.NewTicker(c.opts.SyncInterval)
	defer ticker.Stop()

	var (
		running bool
		again   bool
		done    = make(chan struct{}, 1)
	)

	start := func() {
		if running {
			again = true
			return
		}
		running = true
		dctx, stop := context.WithCancel(ctx)
		c.mu.Lock()
		c.drainStop = stop
		c.mu.Unlock()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer stop()
			if _, err := c.DrainQueue(dctx); err != nil {
				c.log.Error(dctx, "drain failed", "error", err)
			}
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev == netmon.EventOnline {
				start()
				continue
			}
			c.mu.Lock()
			if c.drainStop != nil {
				c.drainStop()
			}
			c.mu.Unlock()
			again = false
		case <-ticker.C:
			start()
		case <-c.trigger:
			start()
		case <-done:
			running = false
			c.mu.Lock()
			c.drainStop = nil
			c.mu.Unlock()
			if again {
				again = false
				start()
			}
		}
	}
}

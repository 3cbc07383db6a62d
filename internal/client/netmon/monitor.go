// Package netmon tracks whether the sync endpoint is reachable and how good
// the link is.
//
// A Monitor probes on a fixed interval and whenever the platform reports a
// connectivity change. Subscribers receive EventOnline and EventOffline
// once per state change; a subscriber that stops reading loses its oldest
// events, never the newest.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/logging"
)

type Event int

const (
	EventOffline Event = iota
	EventOnline
)

func (e Event) String() string {
	if e == EventOnline {
		return "online"
	}
	return "offline"
}

// Prober checks the remote endpoint. A nil error means reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Reachable bool
	Latency   time.Duration
}

type Options struct {
	ProbeInterval  time.Duration
	ProbeTimeout   time.Duration
	DebounceWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		ProbeInterval:  30 * time.Second,
		ProbeTimeout:   5 * time.Second,
		DebounceWindow: time.Second,
	}
}

const subscriberBuffer = 8

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

type Monitor struct {
	prober Prober
	opts   Options
	log    logging.Logger
	now    func() time.Time

	probeMu sync.Mutex // serializes probes so transitions are observed in order

	mu          sync.RWMutex
	status      models.NetworkStatus
	onlineSince time.Time
	subs        map[int]*subscriber
	nextSub     int

	signals chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(prober Prober, opts Options, logger logging.Logger) *Monitor {
	def := DefaultOptions()
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = def.ProbeInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = def.DebounceWindow
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Monitor{
		prober:  prober,
		opts:    opts,
		log:     logger.With("module", "netmon"),
		now:     time.Now,
		subs:    make(map[int]*subscriber),
		signals: make(chan struct{}, 1),
	}
}

func (m *Monitor) IsReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Reachable
}

func (m *Monitor) CurrentQuality() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.QualityScore
}

// Status returns a snapshot of the current state.
func (m *Monitor) Status() models.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Subscribe registers for transition events. The returned function
// unregisters; the channel is not closed.
//
// Delivery never blocks probing: when a subscriber falls subscriberBuffer
// events behind, its oldest pending event is dropped so the newest state
// still arrives.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer), done: make(chan struct{})}

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = s
	m.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(s.done)
		})
	}
}

// Probe checks the endpoint once, bounded by ProbeTimeout, and updates the
// monitor state. Failures are reported as unreachable, never as an error.
func (m *Monitor) Probe(ctx context.Context) ProbeResult {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	start := time.Now()
	err := m.prober.Ping(pctx)
	latency := time.Since(start)
	cancel()

	res := ProbeResult{Reachable: err == nil, Latency: latency}
	if ctx.Err() != nil {
		// caller gave up; says nothing about the link
		return ProbeResult{Latency: latency}
	}
	if err != nil {
		m.log.Debug(ctx, "probe failed", "error", err)
	}

	if ev, changed := m.apply(res); changed {
		m.log.Info(ctx, "connectivity changed", "state", ev.String(), "latency_ms", latency.Milliseconds())
		m.emit(ctx, ev)
	}
	return res
}

func (m *Monitor) apply(res ProbeResult) (Event, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.status.Reachable
	m.status.Reachable = res.Reachable

	if !res.Reachable {
		m.status.QualityScore = 0
		m.status.LastOfflineAt = now
		return EventOffline, prev
	}

	if !prev {
		m.onlineSince = now
	}
	m.status.LatencyMs = res.Latency.Milliseconds()
	m.status.LastOnlineAt = now
	m.status.QualityScore = QualityScore(res.Latency, true, now.Sub(m.onlineSince))
	return EventOnline, !prev
}

func (m *Monitor) emit(ctx context.Context, ev Event) {
	m.mu.RLock()
	subs := make([]*subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	for _, s := range subs {
		if s.offer(ev) {
			continue
		}
		m.log.Warn(ctx, "subscriber lagging, dropped oldest event", "state", ev.String())
	}
}

// offer reports false when an older event had to be evicted.
func (s *subscriber) offer(ev Event) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	for evicted := false; ; evicted = true {
		select {
		case s.ch <- ev:
			return !evicted
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// ConnectivityChanged is the hook for platform network-change signals. A
// burst of calls results in at most one probe per DebounceWindow.
func (m *Monitor) ConnectivityChanged() {
	select {
	case m.signals <- struct{}{}:
	default:
	}
}

// Start probes immediately and then keeps probing in the background until
// ctx is done or Shutdown is called.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Shutdown stops background probing and waits for it to finish.
func (m *Monitor) Shutdown() {
	m.runMu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.opts.ProbeInterval)
	defer ticker.Stop()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		case <-m.signals:
			if fire != nil {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(m.opts.DebounceWindow)
			} else {
				debounce.Reset(m.opts.DebounceWindow)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			m.Probe(ctx)
		}
	}
}

package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iafilius/netperfdash/src/types"
)

// DefaultPollInterval matches the dashboard's auto refresh.
const DefaultPollInterval = 30 * time.Second

// LatestSource is what a Poller polls; *Client satisfies it.
type LatestSource interface {
	Latest(ctx context.Context) (types.Sample, error)
}

// PollStatus is a snapshot of the poller's health.
type PollStatus struct {
	LastSuccess         time.Time
	LastSample          types.Sample
	LastError           error
	ConsecutiveFailures int
	Skipped             int
}

// Poller fetches the latest sample on a fixed interval. A tick that arrives while the previous
// fetch is still running is skipped, so at most one request is in flight.
type Poller struct {
	src      LatestSource
	interval time.Duration
	onSample func(types.Sample)
	onError  func(error)
	metrics  *Metrics
	log      Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	mu     sync.Mutex
	status PollStatus
}

// NewPoller polls src every interval (DefaultPollInterval when <= 0) and passes each sample to
// onSample from the fetching goroutine.
func NewPoller(src LatestSource, interval time.Duration, onSample func(types.Sample)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{src: src, interval: interval, onSample: onSample, log: NewLogger("poller")}
}

// OnError registers a callback for failed fetches.
func (p *Poller) OnError(fn func(error)) { p.onError = fn }

// WithMetrics records each delivered sample in m.
func (p *Poller) WithMetrics(m *Metrics) *Poller {
	p.metrics = m
	return p
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Status returns a copy of the current health snapshot.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run polls until ctx ends, then waits for an in-flight fetch to return. With immediate set the
// first fetch starts right away instead of after one interval.
func (p *Poller) Run(ctx context.Context, immediate bool) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()
	if immediate {
		p.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts a fetch unless one is running and reports whether it did.
func (p *Poller) tick(ctx context.Context) bool {
	if !p.busy.CompareAndSwap(false, true) {
		p.mu.Lock()
		p.status.Skipped++
		p.mu.Unlock()
		p.log.Debugf("previous fetch still running, skipping tick")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.busy.Store(false)
		p.poll(ctx)
	}()
	return true
}

func (p *Poller) poll(ctx context.Context) {
	s, err := p.src.Latest(ctx)
	if ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	if err != nil {
		p.status.LastError = err
		p.status.ConsecutiveFailures++
		failures := p.status.ConsecutiveFailures
		p.mu.Unlock()
		p.log.Warnf("fetch failed (%d in a row): %v", failures, err)
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	p.status.LastSuccess = time.Now()
	p.status.LastSample = s
	p.status.LastError = nil
	p.status.ConsecutiveFailures = 0
	p.mu.Unlock()
	p.metrics.observeSample(s.Timestamp, s.DownloadSpeed, s.UploadSpeed)
	if p.onSample != nil {
		p.onSample(s)
	}
}

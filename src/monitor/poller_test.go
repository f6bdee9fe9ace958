package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iafilius/netperfdash/src/types"
)

// blockingSource hands out one result per release.
type blockingSource struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
	err     error
}

func (b *blockingSource) Latest(ctx context.Context) (types.Sample, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	err := b.err
	b.mu.Unlock()
	select {
	case <-b.release:
	case <-ctx.Done():
		return types.Sample{}, ctx.Err()
	}
	if err != nil {
		return types.Sample{}, err
	}
	return types.Sample{Timestamp: time.Unix(int64(n), 0), DownloadSpeed: float64(n)}, nil
}

func TestPoller_SkipsWhileBusy(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	got := make(chan types.Sample, 4)
	p := NewPoller(src, time.Hour, func(s types.Sample) { got <- s })
	ctx := context.Background()

	require.True(t, p.tick(ctx))
	assert.False(t, p.tick(ctx), "second tick must not start a parallel fetch")
	assert.Equal(t, 1, p.Status().Skipped)

	src.release <- struct{}{}
	s := <-got
	assert.Equal(t, 1.0, s.DownloadSpeed)
	p.wg.Wait()

	require.True(t, p.tick(ctx))
	src.release <- struct{}{}
	<-got
	p.wg.Wait()
	st := p.Status()
	assert.Equal(t, 2.0, st.LastSample.DownloadSpeed)
	assert.False(t, st.LastSuccess.IsZero())
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestPoller_TracksFailures(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}, 2), err: errors.New("boom")}
	src.release <- struct{}{}
	src.release <- struct{}{}
	var errs []error
	var mu sync.Mutex
	p := NewPoller(src, time.Hour, nil)
	p.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.True(t, p.tick(ctx))
		p.wg.Wait()
	}
	st := p.Status()
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.EqualError(t, st.LastError, "boom")
	assert.Len(t, errs, 2)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	p := NewPoller(src, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, true)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.calls, "blocked fetch should suppress further ticks")
	assert.Zero(t, p.Status().ConsecutiveFailures, "cancellation is not a failure")
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, NewPoller(nil, 0, nil).Interval())
}

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/iafilius/netperfdash/src/types"
)

const streamReadLimit = 1 << 20

// Stream follows a websocket that pushes one JSON sample per text message and reconnects with
// exponential backoff until its context ends.
type Stream struct {
	URL      string
	Dialer   *websocket.Dialer
	Header   http.Header
	OnSample func(types.Sample)

	BaseDelay time.Duration
	MaxDelay  time.Duration
	Metrics   *Metrics

	log Logger
}

// NewStream returns a follower with a 1s initial and 30s maximum reconnect delay.
func NewStream(url string, onSample func(types.Sample)) *Stream {
	return &Stream{
		URL:       url,
		Dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		OnSample:  onSample,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		log:       NewLogger("stream"),
	}
}

// errSessionServed ends one backoff sequence after a session that delivered samples, so the
// next outage starts again from BaseDelay.
var errSessionServed = errors.New("session served samples")

// Run connects and reads until ctx ends. Dial and read failures are retried; only an empty
// URL is reported as an error. The reconnect delay grows while sessions fail and drops back to
// BaseDelay once a session has delivered a sample.
func (s *Stream) Run(ctx context.Context) error {
	if s.URL == "" {
		return errors.New("stream url is empty")
	}
	for {
		err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
			served, err := s.session(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, websocket.ErrBadHandshake) {
				s.logger().Warnf("handshake rejected by %s, retrying", s.URL)
			} else {
				s.logger().Warnf("disconnected: %v", err)
			}
			if served {
				return errSessionServed
			}
			return retry.RetryableError(err)
		})
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, errSessionServed) {
			return err
		}
		t := time.NewTimer(s.baseDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (s *Stream) baseDelay() time.Duration {
	if s.BaseDelay <= 0 {
		return time.Second
	}
	return s.BaseDelay
}

func (s *Stream) backoff() retry.Backoff {
	b := retry.NewExponential(s.baseDelay())
	if s.MaxDelay > 0 {
		b = retry.WithCappedDuration(s.MaxDelay, b)
	}
	return b
}

func (s *Stream) logger() Logger {
	if s.log.component == "" {
		return NewLogger("stream")
	}
	return s.log
}

// session holds one connection open until it fails or ctx ends. served reports whether at
// least one sample was decoded.
func (s *Stream) session(ctx context.Context) (served bool, err error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, s.URL, s.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()
	s.logger().Infof("connected to %s", s.URL)
	conn.SetReadLimit(streamReadLimit)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		mtype, data, err := conn.ReadMessage()
		if err != nil {
			return served, err
		}
		if mtype != websocket.TextMessage && mtype != websocket.BinaryMessage {
			continue
		}
		var sample types.Sample
		if err := json.Unmarshal(data, &sample); err != nil {
			s.Metrics.observeStream(false)
			s.logger().Warnf("dropping message: %v", err)
			continue
		}
		served = true
		s.Metrics.observeStream(true)
		s.Metrics.observeSample(sample.Timestamp, sample.DownloadSpeed, sample.UploadSpeed)
		if s.OnSample != nil {
			s.OnSample(sample)
		}
	}
}

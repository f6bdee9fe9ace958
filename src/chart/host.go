package chart

// EventSource delivers host input in surface-local logical coordinates.
// Each registration returns a func that removes the listener.
type EventSource interface {
	OnPointerMove(fn func(x, y float64)) (detach func())
	OnPointerLeave(fn func()) (detach func())
	OnResize(fn func(width, height float64)) (detach func())
}

// FrameScheduler runs fn once on the host's next frame. The returned cancel drops it if it
// has not run yet.
type FrameScheduler interface {
	RequestFrame(fn func()) (cancel func())
}

type frameState int

const (
	frameIdle frameState = iota
	frameScheduled
	frameDisposed
)

func (s frameState) String() string {
	switch s {
	case frameIdle:
		return "idle"
	case frameScheduled:
		return "scheduled"
	case frameDisposed:
		return "disposed"
	}
	return "unknown"
}

// frameLoop coalesces redraw requests into at most one pending frame.
//
//	idle --invalidate--> scheduled --frame--> idle
//	idle|scheduled --dispose--> disposed (terminal, pending frame cancelled)
//
// Without a scheduler invalidate draws synchronously.
type frameLoop struct {
	sched  FrameScheduler
	draw   func()
	state  frameState
	cancel func()
}

func newFrameLoop(sched FrameScheduler, draw func()) *frameLoop {
	return &frameLoop{sched: sched, draw: draw}
}

func (l *frameLoop) invalidate() {
	if l.state != frameIdle {
		return
	}
	if l.sched == nil {
		l.draw()
		return
	}
	l.state = frameScheduled
	cancel := l.sched.RequestFrame(l.tick)
	if l.state == frameScheduled {
		l.cancel = cancel
	}
}

func (l *frameLoop) tick() {
	if l.state != frameScheduled {
		return
	}
	l.state = frameIdle
	l.cancel = nil
	l.draw()
}

func (l *frameLoop) dispose() {
	if l.state == frameScheduled && l.cancel != nil {
		l.cancel()
	}
	l.cancel = nil
	l.state = frameDisposed
}

// ComputeChartDimensions clamps a desired logical width and derives a roughly 3:1 height.
func ComputeChartDimensions(rawW float64) (float64, float64) {
	w := rawW
	if w < 480 {
		w = 480
	}
	h := w * 0.38
	if h < 240 {
		h = 240
	}
	if h > 520 {
		h = 520
	}
	return w, h
}

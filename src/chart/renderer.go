// Package chart draws the historical download/upload chart of the dashboard and resolves
// pointer positions to samples for the tooltip.
//
// A Renderer is not safe for concurrent use; hosts call it from their UI goroutine only.
package chart

import (
	"bytes"
	"image/png"
	"math"

	"github.com/iafilius/netperfdash/src/types"
)

// Tooltip is the transient probe state, rebuilt on every pointer event.
type Tooltip struct {
	Visible bool
	X, Y    float64
	Index   int
	Sample  types.Sample
}

// Located is a hit-test result.
type Located struct {
	Index  int
	Sample types.Sample
}

// Renderer owns a bounded series and paints it into a Surface.
type Renderer struct {
	surface Surface
	frames  *frameLoop
	opts    Options

	series  []types.Sample
	labels  []Label
	tooltip Tooltip

	detach   []func()
	disposed bool
	renders  int
}

// New creates a renderer, subscribes to events (when non-nil) and draws the first frame.
// frames may be nil, in which case every state change redraws synchronously.
func New(surface Surface, events EventSource, frames FrameScheduler, cfg Config) *Renderer {
	r := &Renderer{surface: surface, opts: DefaultOptions().Merge(cfg)}
	r.frames = newFrameLoop(frames, r.Render)
	if events != nil {
		r.detach = append(r.detach,
			events.OnPointerMove(r.SetPointer),
			events.OnPointerLeave(r.ClearPointer),
			events.OnResize(r.Resize),
		)
	}
	r.invalidate()
	return r
}

// Configure replaces the options with the defaults overridden by cfg. A lower MaxDataPoints
// evicts the oldest samples immediately.
func (r *Renderer) Configure(cfg Config) {
	r.opts = DefaultOptions().Merge(cfg)
	r.trim()
	r.relabel()
	if !r.opts.ShowTooltip {
		r.tooltip = Tooltip{}
	}
	r.invalidate()
}

// Options returns the resolved configuration.
func (r *Renderer) Options() Options { return r.opts }

// Series returns a copy of the buffered samples, oldest first.
func (r *Renderer) Series() []types.Sample {
	return append([]types.Sample(nil), r.series...)
}

// Labels returns a copy of the label cache, parallel to Series.
func (r *Renderer) Labels() []Label {
	return append([]Label(nil), r.labels...)
}

// Tooltip returns the current pointer state.
func (r *Renderer) Tooltip() Tooltip { return r.tooltip }

// ReplaceSeries keeps the newest MaxDataPoints entries of samples and redraws.
func (r *Renderer) ReplaceSeries(samples []types.Sample) {
	if over := len(samples) - r.opts.MaxDataPoints; over > 0 {
		samples = samples[over:]
	}
	r.series = make([]types.Sample, len(samples))
	for i, smp := range samples {
		r.series[i] = smp.Clone()
	}
	r.relabel()
	r.invalidate()
}

// AppendSample adds one sample at the end, evicting the oldest past capacity, and redraws.
func (r *Renderer) AppendSample(s types.Sample) {
	r.series = append(r.series, s.Clone())
	r.labels = append(r.labels, makeLabel(s.Timestamp, r.opts.Location))
	r.trim()
	r.invalidate()
}

func (r *Renderer) trim() {
	over := len(r.series) - r.opts.MaxDataPoints
	if over <= 0 {
		return
	}
	r.series = append([]types.Sample(nil), r.series[over:]...)
	if len(r.labels) >= over {
		r.labels = append([]Label(nil), r.labels[over:]...)
	}
}

func (r *Renderer) relabel() {
	labels := make([]Label, len(r.series))
	for i, s := range r.series {
		labels[i] = makeLabel(s.Timestamp, r.opts.Location)
	}
	r.labels = labels
}

// LocateSample maps pointerX linearly across the plot interior onto the sample indices and
// rounds to the nearest one. pointerY does not take part in the match.
func (r *Renderer) LocateSample(pointerX, pointerY float64) (Located, bool) {
	n := len(r.series)
	if n == 0 || math.IsNaN(pointerX) || math.IsInf(pointerX, 0) {
		return Located{}, false
	}
	w, _ := r.surface.Size()
	plotW := w - 2*r.opts.Padding
	if plotW <= 0 {
		return Located{}, false
	}
	rel := (pointerX - r.opts.Padding) / plotW
	// half-up rounding keeps the lookup monotonic around negative zero
	idx := int(math.Floor(rel*float64(n-1) + 0.5))
	if idx < 0 || idx >= n {
		return Located{}, false
	}
	return Located{Index: idx, Sample: r.series[idx]}, true
}

// SetPointer updates the tooltip for a pointer position. It only redraws when there is a
// match or a visible tooltip has to go away.
func (r *Renderer) SetPointer(x, y float64) {
	if !r.opts.ShowTooltip {
		return
	}
	if loc, ok := r.LocateSample(x, y); ok {
		r.tooltip = Tooltip{Visible: true, X: x, Y: y, Index: loc.Index, Sample: loc.Sample}
		r.invalidate()
		return
	}
	if r.tooltip.Visible {
		r.tooltip = Tooltip{}
		r.invalidate()
	}
}

// ClearPointer hides a visible tooltip.
func (r *Renderer) ClearPointer() {
	if !r.tooltip.Visible {
		return
	}
	r.tooltip = Tooltip{}
	r.invalidate()
}

// Resize changes the logical surface size and redraws.
func (r *Renderer) Resize(width, height float64) {
	r.surface.Resize(width, height)
	r.invalidate()
}

// SetTheme switches to the "dark" or "light" palette. Unknown names leave the palette alone
// and report false.
func (r *Renderer) SetTheme(name string) bool {
	p, ok := ThemePalette(name)
	if !ok {
		return false
	}
	r.opts.Colors = p
	r.invalidate()
	return true
}

// ExportSnapshot encodes the backing surface as PNG at device resolution.
func (r *Renderer) ExportSnapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.surface.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dispose cancels a pending frame and detaches every listener. Safe to call more than once.
func (r *Renderer) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	r.frames.dispose()
	for _, d := range r.detach {
		if d != nil {
			d()
		}
	}
	r.detach = nil
}

func (r *Renderer) invalidate() {
	if r.disposed {
		return
	}
	r.frames.invalidate()
}

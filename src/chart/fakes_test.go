package chart

import (
	"image"
	"image/color"
	"time"

	"github.com/iafilius/netperfdash/src/types"
)

// recordingSurface keeps the draw calls of the last frame instead of rasterizing them.
type recordingSurface struct {
	w, h  float64
	ratio float64
	texts []textCall
	rects []rectCall
	paths []pathCall
}

type textCall struct {
	text string
	x, y float64
	st   TextStyle
}

type rectCall struct {
	x, y, w, h float64
	c          color.Color
	stroke     bool
}

type pathCall struct {
	p      *Path
	c      color.Color
	width  float64
	stroke bool
}

func newRecordingSurface(w, h float64) *recordingSurface {
	return &recordingSurface{w: w, h: h, ratio: 1}
}

func (s *recordingSurface) Size() (float64, float64) { return s.w, s.h }
func (s *recordingSurface) PixelRatio() float64      { return s.ratio }
func (s *recordingSurface) Resize(w, h float64)      { s.w, s.h = w, h }
func (s *recordingSurface) Clear() {
	s.texts, s.rects, s.paths = nil, nil, nil
}
func (s *recordingSurface) StrokePath(p *Path, c color.Color, w float64) {
	s.paths = append(s.paths, pathCall{p: p, c: c, width: w, stroke: true})
}
func (s *recordingSurface) FillPath(p *Path, c color.Color) {
	s.paths = append(s.paths, pathCall{p: p, c: c})
}
func (s *recordingSurface) FillRect(x, y, w, h float64, c color.Color) {
	s.rects = append(s.rects, rectCall{x, y, w, h, c, false})
}
func (s *recordingSurface) StrokeRect(x, y, w, h float64, c color.Color, _ float64) {
	s.rects = append(s.rects, rectCall{x, y, w, h, c, true})
}
func (s *recordingSurface) FillText(text string, x, y float64, st TextStyle) {
	s.texts = append(s.texts, textCall{text, x, y, st})
}

// MeasureText uses a fixed advance so tooltip sizes are predictable.
func (s *recordingSurface) MeasureText(text string, size float64) float64 {
	return float64(len(text)) * size * 0.5
}
func (s *recordingSurface) Image() image.Image {
	return image.NewRGBA(image.Rect(0, 0, int(s.w*s.ratio), int(s.h*s.ratio)))
}

func (s *recordingSurface) findText(text string) (textCall, bool) {
	for _, c := range s.texts {
		if c.text == text {
			return c, true
		}
	}
	return textCall{}, false
}

// fakeEvents stores the registered handlers so tests can fire them.
type fakeEvents struct {
	move     func(x, y float64)
	leave    func()
	resize   func(w, h float64)
	detached int
}

func (e *fakeEvents) OnPointerMove(fn func(x, y float64)) func() {
	e.move = fn
	return func() { e.move = nil; e.detached++ }
}

func (e *fakeEvents) OnPointerLeave(fn func()) func() {
	e.leave = fn
	return func() { e.leave = nil; e.detached++ }
}

func (e *fakeEvents) OnResize(fn func(w, h float64)) func() {
	e.resize = fn
	return func() { e.resize = nil; e.detached++ }
}

// fakeFrames queues frame callbacks until flush.
type fakeFrames struct {
	pending   []*func()
	requested int
	cancelled int
}

func (f *fakeFrames) RequestFrame(fn func()) func() {
	f.requested++
	slot := &fn
	f.pending = append(f.pending, slot)
	return func() {
		if *slot != nil {
			*slot = nil
			f.cancelled++
		}
	}
}

func (f *fakeFrames) flush() {
	q := f.pending
	f.pending = nil
	for _, slot := range q {
		if fn := *slot; fn != nil {
			*slot = nil
			fn()
		}
	}
}

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func makeSamples(n int) []types.Sample {
	out := make([]types.Sample, n)
	for i := range out {
		out[i] = types.Sample{
			Timestamp:     testBase.Add(time.Duration(i) * time.Minute),
			DownloadSpeed: float64(10 + i),
			UploadSpeed:   float64(5 + i%3),
		}
	}
	return out
}

func utcConfig() Config {
	return Config{Location: time.UTC}
}

package main

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/iafilius/netperfdash/src/chart"
)

// windowSurface is a raster surface that pushes finished frames into a canvas image.
type windowSurface struct {
	*chart.RasterSurface
	img *canvas.Image
}

func (s *windowSurface) Present() {
	s.img.Image = s.RasterSurface.Image()
	s.img.Refresh()
}

// listenerSet is a keyed set of callbacks so each registration can be removed on its own.
type listenerSet[F any] struct {
	next int
	fns  map[int]F
}

func (l *listenerSet[F]) add(fn F) func() {
	if l.fns == nil {
		l.fns = map[int]F{}
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() { delete(l.fns, id) }
}

func (l *listenerSet[F]) each(call func(F)) {
	for _, fn := range l.fns {
		call(fn)
	}
}

// chartHost is the widget the renderer draws into. It turns hover and resize into chart
// events in widget-local logical coordinates.
type chartHost struct {
	widget.BaseWidget
	img     *canvas.Image
	surface *windowSurface

	move   listenerSet[func(x, y float64)]
	leave  listenerSet[func()]
	resize listenerSet[func(w, h float64)]
}

func newChartHost(width, height float64) (*chartHost, error) {
	rs, err := chart.NewRasterSurface(width, height, 1)
	if err != nil {
		return nil, err
	}
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillStretch
	minW, minH := chart.ComputeChartDimensions(0)
	img.SetMinSize(fyne.NewSize(float32(minW), float32(minH)))
	h := &chartHost{img: img, surface: &windowSurface{RasterSurface: rs, img: img}}
	h.ExtendBaseWidget(h)
	return h, nil
}

func (h *chartHost) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(h.img)
}

func (h *chartHost) OnPointerMove(fn func(x, y float64)) func() { return h.move.add(fn) }
func (h *chartHost) OnPointerLeave(fn func()) func()            { return h.leave.add(fn) }
func (h *chartHost) OnResize(fn func(w, h float64)) func()      { return h.resize.add(fn) }

// Resize keeps the backing store in step with the widget and the screen density.
func (h *chartHost) Resize(size fyne.Size) {
	h.BaseWidget.Resize(size)
	if a := fyne.CurrentApp(); a != nil {
		if c := a.Driver().CanvasForObject(h); c != nil {
			h.surface.SetPixelRatio(float64(c.Scale()))
		}
	}
	h.fireResize(float64(size.Width), float64(size.Height))
}

func (h *chartHost) fireResize(w, ht float64) {
	h.resize.each(func(fn func(w, h float64)) { fn(w, ht) })
}

func (h *chartHost) MouseIn(ev *desktop.MouseEvent) { h.MouseMoved(ev) }

func (h *chartHost) MouseMoved(ev *desktop.MouseEvent) {
	x, y := float64(ev.Position.X), float64(ev.Position.Y)
	h.move.each(func(fn func(x, y float64)) { fn(x, y) })
}

func (h *chartHost) MouseOut() {
	h.leave.each(func(fn func()) { fn() })
}

var (
	_ desktop.Hoverable    = (*chartHost)(nil)
	_ chart.EventSource    = (*chartHost)(nil)
	_ chart.Presenter      = (*windowSurface)(nil)
	_ chart.FrameScheduler = fyneFrames{}
)

// fyneFrames runs frames on the Fyne main goroutine. do is fyne.Do outside tests.
type fyneFrames struct {
	do func(func())
}

func (f fyneFrames) RequestFrame(fn func()) func() {
	cancelled := false
	f.do(func() {
		if !cancelled {
			fn()
		}
	})
	return func() { cancelled = true }
}

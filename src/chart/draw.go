package chart

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/iafilius/netperfdash/src/types"
)

const (
	markerRadius   = 4.0
	lineWidth      = 3.0
	axisFontSize   = 12.0
	legendFontSize = 14.0
	emptyFontSize  = 16.0
	maxTimeMarkers = 6
	maxTimeLabels  = 4
)

// plotGeometry is the mapping from sample space to the plotting rectangle.
type plotGeometry struct {
	left, top, right, bottom float64
	width, height            float64
	maxValue                 float64
	n                        int
}

func (r *Renderer) geometry() plotGeometry {
	w, h := r.surface.Size()
	p := r.opts.Padding
	g := plotGeometry{
		left: p, top: p, right: w - p, bottom: h - p,
		width: w - 2*p, height: h - 2*p,
		n: len(r.series),
	}
	g.maxValue = seriesMax(r.series)
	return g
}

// seriesMax is the shared scale ceiling of both speed lines, never below 1.
func seriesMax(series []types.Sample) float64 {
	m := 1.0
	for _, s := range series {
		m = math.Max(m, s.Metric(types.KeyDownloadSpeed))
		m = math.Max(m, s.Metric(types.KeyUploadSpeed))
	}
	return m
}

// point maps sample i with value v to logical pixels. A single sample sits on the left edge.
func (g plotGeometry) point(i int, v float64) (float64, float64) {
	x := g.left
	if g.n > 1 {
		x = g.left + g.width*float64(i)/float64(g.n-1)
	}
	return x, g.bottom - v/g.maxValue*g.height
}

// Render repaints the whole surface from the current series, tooltip and palette.
func (r *Renderer) Render() {
	if r.disposed {
		return
	}
	r.renders++
	s := r.surface
	s.Clear()
	w, h := s.Size()
	if len(r.series) == 0 {
		s.FillText("No data available", w/2, h/2, TextStyle{
			Size: emptyFontSize, Color: r.opts.Colors.Text, Align: AlignCenter, Baseline: BaselineMiddle,
		})
		r.present()
		return
	}
	g := r.geometry()
	r.drawGrid(g)
	r.drawAxes(g)
	r.drawLine(g, types.KeyDownloadSpeed, r.opts.Colors.Download)
	r.drawLine(g, types.KeyUploadSpeed, r.opts.Colors.Upload)
	r.drawLegend(w)
	r.drawTooltip(w, h)
	r.present()
}

func (r *Renderer) present() {
	if p, ok := r.surface.(Presenter); ok {
		p.Present()
	}
}

func (r *Renderer) drawGrid(g plotGeometry) {
	grid := &Path{}
	lines := r.opts.GridLines
	for i := 0; i <= lines; i++ {
		y := g.top + g.height*float64(i)/float64(lines)
		grid.MoveTo(g.left, y)
		grid.LineTo(g.right, y)
	}
	steps := g.n
	if steps > maxTimeMarkers {
		steps = maxTimeMarkers
	}
	for i := 0; i <= steps; i++ {
		x := g.left + g.width*float64(i)/float64(steps)
		grid.MoveTo(x, g.top)
		grid.LineTo(x, g.bottom)
	}
	r.surface.StrokePath(grid, r.opts.Colors.Grid, 1)
}

func (r *Renderer) drawAxes(g plotGeometry) {
	text := r.opts.Colors.Text
	lines := r.opts.GridLines
	for i := 0; i <= lines; i++ {
		frac := float64(i) / float64(lines)
		value := g.maxValue * (1 - frac)
		y := g.top + g.height*frac
		r.surface.FillText(FormatSpeed(value), g.left-10, y, TextStyle{
			Size: axisFontSize, Color: text, Align: AlignRight, Baseline: BaselineMiddle,
		})
	}
	steps := g.n
	if steps > maxTimeLabels {
		steps = maxTimeLabels
	}
	for i := 0; i <= steps; i++ {
		idx := i * (g.n - 1) / steps
		if idx >= len(r.labels) {
			continue
		}
		x := g.left + g.width*float64(i)/float64(steps)
		r.surface.FillText(r.labels[idx].Short, x, g.bottom+10, TextStyle{
			Size: axisFontSize, Color: text, Align: AlignCenter, Baseline: BaselineTop,
		})
	}
}

// linePath builds the outline for one metric. With smoothing each segment is a quadratic
// curve whose control point is the horizontal midpoint at the previous sample's height.
func (r *Renderer) linePath(g plotGeometry, key string) *Path {
	p := &Path{}
	if g.n < 2 {
		return p
	}
	var px, py float64
	for i, s := range r.series {
		x, y := g.point(i, s.Metric(key))
		switch {
		case i == 0:
			p.MoveTo(x, y)
		case r.opts.Smoothing:
			p.QuadTo((px+x)/2, py, x, y)
		default:
			p.LineTo(x, y)
		}
		px, py = x, y
	}
	return p
}

// drawLine strokes one metric with a vertical fade: full color at the top of the plot down to
// half alpha at the bottom, sampled at each segment's midpoint. Markers stay opaque.
func (r *Renderer) drawLine(g plotGeometry, key string, col drawing.Color) {
	for _, seg := range r.linePath(g, key).Segments() {
		y0 := seg.segs[0].pts[1]
		_, y1 := seg.End()
		r.surface.StrokePath(seg, g.fade(col, (y0+y1)/2), lineWidth)
	}
	dots := &Path{}
	for i, s := range r.series {
		x, y := g.point(i, s.Metric(key))
		dots.Circle(x, y, markerRadius)
	}
	r.surface.FillPath(dots, col)
}

// fadeAlpha is the fraction of the alpha a line keeps at the bottom of the plot.
const fadeAlpha = 128.0 / 255

func (g plotGeometry) fade(c drawing.Color, y float64) drawing.Color {
	t := 0.0
	if g.height > 0 {
		t = math.Max(0, math.Min(1, (y-g.top)/g.height))
	}
	c.A = uint8(math.Round(float64(c.A) * (1 - t*(1-fadeAlpha))))
	return c
}

func (r *Renderer) drawLegend(w float64) {
	c := r.opts.Colors
	s := r.surface
	s.FillRect(w-170, 10, 160, 60, c.Background)
	s.FillRect(w-160, 20, 20, 3, c.Download)
	s.FillRect(w-160, 40, 20, 3, c.Upload)
	name := TextStyle{Size: legendFontSize, Color: c.Text, Baseline: BaselineMiddle}
	s.FillText("Download", w-135, 22, name)
	s.FillText("Upload", w-135, 42, name)

	latest := r.series[len(r.series)-1]
	value := TextStyle{Size: axisFontSize, Baseline: BaselineMiddle}
	value.Color = c.Download
	s.FillText(FormatSpeed(latest.DownloadSpeed), w-80, 22, value)
	value.Color = c.Upload
	s.FillText(FormatSpeed(latest.UploadSpeed), w-80, 42, value)
}

// tooltipLines lists the probed sample: time, both speeds, then extra metrics by name.
func (r *Renderer) tooltipLines(s types.Sample) []string {
	lines := []string{
		"Time: " + makeLabel(s.Timestamp, r.opts.Location).Full,
		"Download: " + FormatSpeed(s.DownloadSpeed),
		"Upload: " + FormatSpeed(s.UploadSpeed),
	}
	for _, k := range s.ExtraKeys() {
		lines = append(lines, fmt.Sprintf("%s: %.1f", k, s.Extra[k]))
	}
	return lines
}

// tooltipBox places a w×h box up and to the right of the pointer, flipping left when it
// would leave the right edge and below when it would leave the top edge. The result is then
// clamped into the surface; a box larger than the surface is pinned to the top-left corner.
func tooltipBox(px, py, boxW, boxH, surfaceW, surfaceH float64) (float64, float64) {
	x := px + 10
	y := py - boxH - 10
	if x+boxW > surfaceW {
		x = px - boxW - 10
	}
	if y < 0 {
		y = py + 10
	}
	x = math.Max(0, math.Min(x, surfaceW-boxW))
	y = math.Max(0, math.Min(y, surfaceH-boxH))
	return x, y
}

func (r *Renderer) drawTooltip(w, h float64) {
	t := r.tooltip
	if !t.Visible {
		return
	}
	lines := r.tooltipLines(t.Sample)
	maxW := 0.0
	for _, l := range lines {
		maxW = math.Max(maxW, r.surface.MeasureText(l, axisFontSize))
	}
	boxW := maxW + 20
	boxH := float64(len(lines))*20 + 10
	x, y := tooltipBox(t.X, t.Y, boxW, boxH, w, h)
	c := r.opts.Colors
	r.surface.FillRect(x, y, boxW, boxH, c.Background)
	r.surface.StrokeRect(x, y, boxW, boxH, c.Text, 1)
	for i, l := range lines {
		r.surface.FillText(l, x+10, y+10+float64(i)*20, TextStyle{
			Size: axisFontSize, Color: c.Text, Align: AlignLeft, Baseline: BaselineTop,
		})
	}
}

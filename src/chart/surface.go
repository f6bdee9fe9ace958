package chart

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Align is the horizontal anchor of a text run.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Baseline is the vertical anchor of a text run.
type Baseline int

const (
	BaselineAlphabetic Baseline = iota
	BaselineTop
	BaselineMiddle
)

// TextStyle describes how FillText places and paints a string. Size is in logical pixels.
type TextStyle struct {
	Size     float64
	Color    color.Color
	Align    Align
	Baseline Baseline
}

type pathOp int

const (
	opMove pathOp = iota
	opLine
	opQuad
	opCircle
)

type pathSeg struct {
	op  pathOp
	pts [4]float64
}

// Path is a device independent outline in logical coordinates.
type Path struct {
	segs []pathSeg
}

func (p *Path) MoveTo(x, y float64) { p.segs = append(p.segs, pathSeg{op: opMove, pts: [4]float64{x, y}}) }
func (p *Path) LineTo(x, y float64) { p.segs = append(p.segs, pathSeg{op: opLine, pts: [4]float64{x, y}}) }

// QuadTo adds a quadratic curve through control point (cx, cy) ending at (x, y).
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.segs = append(p.segs, pathSeg{op: opQuad, pts: [4]float64{cx, cy, x, y}})
}

// Circle adds a closed circle centered on (x, y).
func (p *Path) Circle(x, y, r float64) {
	p.segs = append(p.segs, pathSeg{op: opCircle, pts: [4]float64{x, y, r}})
}

// Len reports the number of segments.
func (p *Path) Len() int { return len(p.segs) }

// End returns the last point the path reaches.
func (p *Path) End() (x, y float64) {
	if len(p.segs) == 0 {
		return 0, 0
	}
	s := p.segs[len(p.segs)-1]
	if s.op == opQuad {
		return s.pts[2], s.pts[3]
	}
	return s.pts[0], s.pts[1]
}

// Segments splits a connected path into one path per drawing segment, each starting where
// the previous one ended. A leading MoveTo is consumed; circles are not split.
func (p *Path) Segments() []*Path {
	var out []*Path
	var x, y float64
	for _, s := range p.segs {
		switch s.op {
		case opMove:
			x, y = s.pts[0], s.pts[1]
			continue
		case opCircle:
			continue
		}
		seg := &Path{}
		seg.MoveTo(x, y)
		seg.segs = append(seg.segs, s)
		out = append(out, seg)
		x, y = seg.End()
	}
	return out
}

// scaled converts the path to device pixels for the go-chart rasterizer.
func (p *Path) scaled(k float64) *drawing.Path {
	out := &drawing.Path{}
	for _, s := range p.segs {
		switch s.op {
		case opMove:
			out.MoveTo(s.pts[0]*k, s.pts[1]*k)
		case opLine:
			out.LineTo(s.pts[0]*k, s.pts[1]*k)
		case opQuad:
			out.QuadCurveTo(s.pts[0]*k, s.pts[1]*k, s.pts[2]*k, s.pts[3]*k)
		case opCircle:
			cx, cy, r := s.pts[0]*k, s.pts[1]*k, s.pts[2]*k
			out.MoveTo(cx+r, cy)
			out.ArcTo(cx, cy, r, r, 0, 2*math.Pi)
			out.Close()
		}
	}
	return out
}

// Surface is the drawable a Renderer paints into. Coordinates are logical pixels; the
// implementation maps them onto a backing store scaled by PixelRatio.
type Surface interface {
	Size() (width, height float64)
	PixelRatio() float64
	Resize(width, height float64)
	Clear()
	StrokePath(p *Path, c color.Color, lineWidth float64)
	FillPath(p *Path, c color.Color)
	FillRect(x, y, w, h float64, c color.Color)
	StrokeRect(x, y, w, h float64, c color.Color, lineWidth float64)
	FillText(text string, x, y float64, st TextStyle)
	MeasureText(text string, size float64) float64
	Image() image.Image
}

// Presenter is implemented by surfaces that must push a finished frame to the screen.
type Presenter interface {
	Present()
}

// RasterSurface is an in-memory Surface backed by an RGBA image.
type RasterSurface struct {
	width, height float64
	ratio         float64
	img           *image.RGBA
	gc            *drawing.RasterGraphicContext
	font          *truetype.Font
	faces         map[float64]font.Face
}

// NewRasterSurface allocates a surface of the given logical size. pixelRatio <= 0 means 1.
func NewRasterSurface(width, height, pixelRatio float64) (*RasterSurface, error) {
	f, err := gochart.GetDefaultFont()
	if err != nil {
		return nil, err
	}
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	s := &RasterSurface{ratio: pixelRatio, font: f, faces: map[float64]font.Face{}}
	s.Resize(width, height)
	return s, nil
}

func (s *RasterSurface) Size() (float64, float64) { return s.width, s.height }
func (s *RasterSurface) PixelRatio() float64      { return s.ratio }

// SetPixelRatio changes the backing store density, e.g. when a window moves between screens.
func (s *RasterSurface) SetPixelRatio(ratio float64) {
	if ratio <= 0 || ratio == s.ratio {
		return
	}
	s.ratio = ratio
	s.faces = map[float64]font.Face{}
	s.Resize(s.width, s.height)
}

// Resize reallocates the backing store for the new logical size.
func (s *RasterSurface) Resize(width, height float64) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	pw := int(math.Round(width * s.ratio))
	ph := int(math.Round(height * s.ratio))
	if pw < 1 {
		pw = 1
	}
	if ph < 1 {
		ph = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	gc, err := drawing.NewRasterGraphicContext(img)
	if err != nil {
		return
	}
	s.width, s.height = width, height
	s.img, s.gc = img, gc
}

// Clear resets every pixel to transparent.
func (s *RasterSurface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (s *RasterSurface) StrokePath(p *Path, c color.Color, lineWidth float64) {
	if p == nil || p.Len() == 0 {
		return
	}
	s.gc.BeginPath()
	s.gc.SetStrokeColor(c)
	s.gc.SetLineWidth(lineWidth * s.ratio)
	s.gc.Stroke(p.scaled(s.ratio))
}

func (s *RasterSurface) FillPath(p *Path, c color.Color) {
	if p == nil || p.Len() == 0 {
		return
	}
	s.gc.BeginPath()
	s.gc.SetFillColor(c)
	s.gc.Fill(p.scaled(s.ratio))
}

func rectPath(x, y, w, h float64) *Path {
	p := &Path{}
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.LineTo(x, y)
	return p
}

func (s *RasterSurface) FillRect(x, y, w, h float64, c color.Color) {
	s.FillPath(rectPath(x, y, w, h), c)
}

func (s *RasterSurface) StrokeRect(x, y, w, h float64, c color.Color, lineWidth float64) {
	s.StrokePath(rectPath(x, y, w, h), c, lineWidth)
}

// face returns a cached font face for a logical size at the current pixel ratio.
func (s *RasterSurface) face(size float64) font.Face {
	if f, ok := s.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(s.font, &truetype.Options{Size: size * s.ratio, DPI: 72, Hinting: font.HintingNone})
	s.faces[size] = f
	return f
}

// MeasureText returns the advance width of text in logical pixels.
func (s *RasterSurface) MeasureText(text string, size float64) float64 {
	adv := font.MeasureString(s.face(size), text)
	return float64(adv) / 64 / s.ratio
}

// FillText draws text anchored at (x, y) according to st.
func (s *RasterSurface) FillText(text string, x, y float64, st TextStyle) {
	if text == "" {
		return
	}
	face := s.face(st.Size)
	px, py := x*s.ratio, y*s.ratio
	adv := float64(font.MeasureString(face, text)) / 64
	switch st.Align {
	case AlignCenter:
		px -= adv / 2
	case AlignRight:
		px -= adv
	}
	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64
	switch st.Baseline {
	case BaselineTop:
		py += ascent
	case BaselineMiddle:
		py += (ascent - descent) / 2
	}
	col := st.Color
	if col == nil {
		col = color.White
	}
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(px * 64)), Y: fixed.Int26_6(math.Round(py * 64))},
	}
	d.DrawString(text)
}

// Image exposes the backing store. Callers must not keep it across a Resize.
func (s *RasterSurface) Image() image.Image { return s.img }

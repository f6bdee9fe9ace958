package chart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette holds the colors the renderer paints with.
type Palette struct {
	Download   drawing.Color
	Upload     drawing.Color
	Grid       drawing.Color
	Text       drawing.Color
	Background drawing.Color // legend and tooltip boxes
}

var themes = map[string]Palette{
	"dark": {
		Download:   drawing.Color{R: 0x4a, G: 0xde, B: 0x80, A: 255},
		Upload:     drawing.Color{R: 0x06, G: 0xb6, B: 0xd4, A: 255},
		Grid:       drawing.Color{R: 255, G: 255, B: 255, A: 26},
		Text:       drawing.Color{R: 255, G: 255, B: 255, A: 255},
		Background: drawing.Color{R: 0, G: 0, B: 0, A: 204},
	},
	"light": {
		Download:   drawing.Color{R: 0x22, G: 0xc5, B: 0x5e, A: 255},
		Upload:     drawing.Color{R: 0x08, G: 0x91, B: 0xb2, A: 255},
		Grid:       drawing.Color{R: 0, G: 0, B: 0, A: 26},
		Text:       drawing.Color{R: 0, G: 0, B: 0, A: 255},
		Background: drawing.Color{R: 255, G: 255, B: 255, A: 230},
	},
}

// ThemePalette returns the preset palette for exactly "dark" or "light".
func ThemePalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// Options is the fully resolved renderer configuration.
type Options struct {
	Padding       float64 // inset of the plotting rectangle on every side
	GridLines     int     // horizontal grid intervals; gridLines+1 lines and Y labels
	MaxDataPoints int     // series capacity, oldest samples are evicted first
	Smoothing     bool    // quadratic segments instead of straight ones
	ShowTooltip   bool    // pointer probing enabled
	Colors        Palette
	Location      *time.Location // time zone for axis and tooltip labels
}

// DefaultOptions returns the stock configuration (dark palette, local time).
func DefaultOptions() Options {
	return Options{
		Padding:       60,
		GridLines:     6,
		MaxDataPoints: 50,
		Smoothing:     true,
		ShowTooltip:   true,
		Colors:        themes["dark"],
		Location:      time.Local,
	}
}

// ColorConfig carries palette overrides as hex strings (#rrggbb or #rrggbbaa).
type ColorConfig struct {
	Download   string `yaml:"download"`
	Upload     string `yaml:"upload"`
	Grid       string `yaml:"grid"`
	Text       string `yaml:"text"`
	Background string `yaml:"background"`
}

// Config lists every recognized option. Nil fields keep the default.
type Config struct {
	Padding       *float64       `yaml:"padding"`
	GridLines     *int           `yaml:"grid_lines"`
	MaxDataPoints *int           `yaml:"max_data_points"`
	Smoothing     *bool          `yaml:"smoothing"`
	ShowTooltip   *bool          `yaml:"show_tooltip"`
	Theme         *string        `yaml:"theme"`
	Colors        *ColorConfig   `yaml:"colors"`
	Location      *time.Location `yaml:"-"`
}

// Float, Int, Bool and String return pointers for building a Config in code.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }
func String(v string) *string  { return &v }

// Merge applies the non-nil fields of c over o. Values outside their usable range
// (negative padding, fewer than one grid line or data point, unparsable colors) are ignored.
// Theme is applied before Colors so individual colors can refine a preset.
func (o Options) Merge(c Config) Options {
	if c.Padding != nil && *c.Padding >= 0 {
		o.Padding = *c.Padding
	}
	if c.GridLines != nil && *c.GridLines >= 1 {
		o.GridLines = *c.GridLines
	}
	if c.MaxDataPoints != nil && *c.MaxDataPoints >= 1 {
		o.MaxDataPoints = *c.MaxDataPoints
	}
	if c.Smoothing != nil {
		o.Smoothing = *c.Smoothing
	}
	if c.ShowTooltip != nil {
		o.ShowTooltip = *c.ShowTooltip
	}
	if c.Theme != nil {
		if p, ok := ThemePalette(*c.Theme); ok {
			o.Colors = p
		}
	}
	if c.Colors != nil {
		o.Colors = o.Colors.override(*c.Colors)
	}
	if c.Location != nil {
		o.Location = c.Location
	}
	return o
}

func (p Palette) override(cc ColorConfig) Palette {
	set := func(dst *drawing.Color, hex string) {
		if hex == "" {
			return
		}
		if col, err := ParseColor(hex); err == nil {
			*dst = col
		}
	}
	set(&p.Download, cc.Download)
	set(&p.Upload, cc.Upload)
	set(&p.Grid, cc.Grid)
	set(&p.Text, cc.Text)
	set(&p.Background, cc.Background)
	return p
}

// ParseColor parses #rrggbb or #rrggbbaa.
func ParseColor(s string) (drawing.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	alpha := uint64(255)
	switch len(hex) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return drawing.Color{}, fmt.Errorf("color %q: bad alpha: %w", s, err)
		}
		alpha = a
		hex = hex[:6]
	default:
		return drawing.Color{}, fmt.Errorf("color %q: want #rrggbb or #rrggbbaa", s)
	}
	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return drawing.Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: uint8(alpha)}, nil
}

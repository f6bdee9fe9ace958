package chart

import (
	"testing"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

func TestMerge_ExplicitValuesWin(t *testing.T) {
	o := DefaultOptions().Merge(Config{
		Padding:       Float(0),
		Smoothing:     Bool(false),
		ShowTooltip:   Bool(false),
		MaxDataPoints: Int(10),
	})
	if o.Padding != 0 || o.Smoothing || o.ShowTooltip || o.MaxDataPoints != 10 {
		t.Fatalf("explicit zero/false values lost: %+v", o)
	}
	if o.GridLines != 6 {
		t.Fatalf("unset grid lines changed: %d", o.GridLines)
	}
}

func TestMerge_IgnoresUnusableValues(t *testing.T) {
	o := DefaultOptions().Merge(Config{
		Padding:       Float(-5),
		GridLines:     Int(0),
		MaxDataPoints: Int(-1),
		Theme:         String("neon"),
		Colors:        &ColorConfig{Download: "not-a-color"},
	})
	d := DefaultOptions()
	if o.Padding != d.Padding || o.GridLines != d.GridLines || o.MaxDataPoints != d.MaxDataPoints || o.Colors != d.Colors {
		t.Fatalf("invalid overrides applied: %+v", o)
	}
}

func TestMerge_ThemeThenColors(t *testing.T) {
	o := DefaultOptions().Merge(Config{
		Theme:  String("Light"),
		Colors: &ColorConfig{Upload: "#ff000080"},
	})
	light := themes["light"]
	if o.Colors.Download != light.Download {
		t.Fatalf("theme preset not applied")
	}
	if want := (drawing.Color{R: 255, A: 128}); o.Colors.Upload != want {
		t.Fatalf("upload color %+v want %+v", o.Colors.Upload, want)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#4ade80")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != themes["dark"].Download {
		t.Fatalf("got %+v want dark download color", c)
	}
	c, err = ParseColor(" ffffff1a ")
	if err != nil || c != themes["dark"].Grid {
		t.Fatalf("rgba form: %+v %v", c, err)
	}
	for _, bad := range []string{"", "#fff", "#gggggg", "#ffffffzz"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestThemePalette(t *testing.T) {
	if _, ok := ThemePalette("dark"); !ok {
		t.Fatalf("dark missing")
	}
	for _, name := range []string{" light", "LIGHT", "Dark", ""} {
		if _, ok := ThemePalette(name); ok {
			t.Fatalf("theme names are exact, %q accepted", name)
		}
	}
	if _, ok := ThemePalette("blue"); ok {
		t.Fatalf("unexpected theme")
	}
}

package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iafilius/netperfdash/src/chart"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "netperfdash.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	p := writeConfig(t, `
api_url: http://metrics.lan:8080
timeframe: 7d
poll_interval: 10s
stream_url: ws://metrics.lan:8080/ws
theme: light
log_level: debug
window: {width: 900, height: 300}
unknown_key: ignored
chart:
  padding: 40
  smoothing: false
  max_data_points: 120
  colors:
    download: "#ff0000"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "http://metrics.lan:8080", cfg.APIURL)
	assert.Equal(t, "7d", cfg.Timeframe)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, Window{Width: 900, Height: 300}, cfg.Window)

	opts := chart.DefaultOptions().Merge(cfg.ChartConfig())
	assert.Equal(t, 40.0, opts.Padding)
	assert.False(t, opts.Smoothing, "explicit false must survive the merge")
	assert.Equal(t, 120, opts.MaxDataPoints)
	assert.Equal(t, 6, opts.GridLines)
	light, _ := chart.ThemePalette("light")
	assert.Equal(t, light.Upload, opts.Colors.Upload, "top-level theme applies to the chart")
	assert.Equal(t, uint8(255), opts.Colors.Download.R)
}

func TestLoad_ValidationNamesKey(t *testing.T) {
	cases := map[string]string{
		"api_url: localhost":                        "api_url",
		"timeframe: 1y":                             "timeframe",
		"poll_interval: 100ms":                      "poll_interval",
		"stream_url: http://x/ws":                   "stream_url",
		"theme: neon":                               "theme",
		"log_level: loud":                           "log_level",
		"window: {width: 0, height: 10}":            "window",
		"chart: {grid_lines: 0}":                    "chart.grid_lines",
		"chart: {padding: -1}":                      "chart.padding",
		"chart: {max_data_points: 0}":               "chart.max_data_points",
		"chart: {colors: {grid: \"#12\"}}":          "chart.colors.grid",
		"chart: {theme: sepia}":                     "chart.theme",
	}
	for body, key := range cases {
		_, err := Load(writeConfig(t, body))
		require.Error(t, err, body)
		assert.Contains(t, err.Error(), key+":", body)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Load(writeConfig(t, "api_url: [unterminated"))
	assert.Error(t, err)
}

func TestFlags_OverrideFile(t *testing.T) {
	p := writeConfig(t, "timeframe: 7d\ntheme: light\nchart: {theme: light}\n")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", p, "-theme", "dark", "-width", "640"}))

	cfg, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "7d", cfg.Timeframe, "unset flag keeps the file value")
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, 640.0, cfg.Window.Width)
	assert.Equal(t, 420.0, cfg.Window.Height)
	dark, _ := chart.ThemePalette("dark")
	assert.Equal(t, dark, chart.DefaultOptions().Merge(cfg.ChartConfig()).Colors)
}

func TestFlags_InvalidOverride(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-timeframe", "90d"}))
	_, err := f.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeframe:")
}

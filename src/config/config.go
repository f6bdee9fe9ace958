// Package config loads the dashboard settings from an optional YAML file and command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/monitor"
)

// Window is the initial logical size of the chart.
type Window struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config is the dashboard configuration. Every key is optional.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	Timeframe    string        `yaml:"timeframe"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StreamURL    string        `yaml:"stream_url"`
	Theme        string        `yaml:"theme"`
	LogLevel     string        `yaml:"log_level"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	Window       Window        `yaml:"window"`
	Chart        chart.Config  `yaml:"chart"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIURL:       "http://localhost:5000",
		Timeframe:    string(monitor.Timeframe24h),
		PollInterval: monitor.DefaultPollInterval,
		Theme:        "dark",
		LogLevel:     "info",
		Window:       Window{Width: 1100, Height: 420},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every key and names the first offending one.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url: %q is not an absolute URL", c.APIURL)
	}
	if _, err := monitor.ParseTimeframe(c.Timeframe); err != nil {
		return fmt.Errorf("timeframe: %w", err)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval: %s is below 1s", c.PollInterval)
	}
	if c.StreamURL != "" {
		u, err := url.Parse(c.StreamURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("stream_url: %q must be a ws:// or wss:// URL", c.StreamURL)
		}
	}
	if _, ok := chart.ThemePalette(c.Theme); !ok {
		return fmt.Errorf("theme: unknown theme %q (want dark or light)", c.Theme)
	}
	if _, ok := monitor.ParseLogLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window: size %vx%v must be positive", c.Window.Width, c.Window.Height)
	}
	return validateChart(c.Chart)
}

func validateChart(cc chart.Config) error {
	if cc.Padding != nil && *cc.Padding < 0 {
		return errors.New("chart.padding: must not be negative")
	}
	if cc.GridLines != nil && *cc.GridLines < 1 {
		return errors.New("chart.grid_lines: must be at least 1")
	}
	if cc.MaxDataPoints != nil && *cc.MaxDataPoints < 1 {
		return errors.New("chart.max_data_points: must be at least 1")
	}
	if cc.Theme != nil {
		if _, ok := chart.ThemePalette(*cc.Theme); !ok {
			return fmt.Errorf("chart.theme: unknown theme %q", *cc.Theme)
		}
	}
	if cc.Colors == nil {
		return nil
	}
	colors := []struct{ key, value string }{
		{"download", cc.Colors.Download},
		{"upload", cc.Colors.Upload},
		{"grid", cc.Colors.Grid},
		{"text", cc.Colors.Text},
		{"background", cc.Colors.Background},
	}
	for _, c := range colors {
		if c.value == "" {
			continue
		}
		if _, err := chart.ParseColor(c.value); err != nil {
			return fmt.Errorf("chart.colors.%s: %w", c.key, err)
		}
	}
	return nil
}

// ChartConfig is the renderer configuration: the chart section with the top-level theme
// applied unless the chart section names its own.
func (c *Config) ChartConfig() chart.Config {
	cc := c.Chart
	if cc.Theme == nil && c.Theme != "" {
		cc.Theme = chart.String(c.Theme)
	}
	return cc
}

// Flags binds the options shared by every command. Flags that are set on the command line
// override the file.
type Flags struct {
	fs *flag.FlagSet

	path        string
	apiURL      string
	timeframe   string
	poll        time.Duration
	streamURL   string
	theme       string
	logLevel    string
	metricsAddr string
	width       float64
	height      float64
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	d := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.path, "config", "", "YAML config file")
	fs.StringVar(&f.apiURL, "api", d.APIURL, "metrics API base URL")
	fs.StringVar(&f.timeframe, "timeframe", d.Timeframe, "history window: 24h, 7d or 30d")
	fs.DurationVar(&f.poll, "poll", d.PollInterval, "live refresh interval")
	fs.StringVar(&f.streamURL, "stream", "", "optional websocket URL pushing live samples")
	fs.StringVar(&f.theme, "theme", d.Theme, "chart theme: dark or light")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9108)")
	fs.Float64Var(&f.width, "width", d.Window.Width, "chart width in logical pixels")
	fs.Float64Var(&f.height, "height", d.Window.Height, "chart height in logical pixels")
	return f
}

// Load reads the -config file and applies every flag the user set. Call after fs.Parse.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.path)
	if err != nil {
		return nil, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "api":
			cfg.APIURL = f.apiURL
		case "timeframe":
			cfg.Timeframe = f.timeframe
		case "poll":
			cfg.PollInterval = f.poll
		case "stream":
			cfg.StreamURL = f.streamURL
		case "theme":
			cfg.Theme = f.theme
			cfg.Chart.Theme = nil
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "metrics-addr":
			cfg.MetricsAddr = f.metricsAddr
		case "width":
			cfg.Window.Width = f.width
		case "height":
			cfg.Window.Height = f.height
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}

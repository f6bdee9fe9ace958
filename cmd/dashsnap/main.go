// Command dashsnap renders the dashboard chart headlessly to a PNG, either from the live API or
// from a JSON file of samples.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/config"
	"github.com/iafilius/netperfdash/src/monitor"
	"github.com/iafilius/netperfdash/src/types"
)

var log = monitor.NewLogger("dashsnap")

func main() {
	if err := run(os.Args[1:], os.Stdin); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

type options struct {
	cfg *config.Config
	in  string
	out string
	dpr float64
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("dashsnap", flag.ContinueOnError)
	cf := config.RegisterFlags(fs)
	o := &options{}
	fs.StringVar(&o.in, "in", "", "read samples from this JSON file instead of the API (- for stdin)")
	fs.StringVar(&o.out, "out", "", "output PNG path (default netperf-<timeframe>.png)")
	fs.Float64Var(&o.dpr, "dpr", 1, "device pixel ratio of the output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.dpr <= 0 {
		return nil, fmt.Errorf("-dpr must be positive, got %v", o.dpr)
	}
	cfg, err := cf.Load()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	if o.out == "" {
		o.out = fmt.Sprintf("netperf-%s.png", cfg.Timeframe)
	}
	return o, nil
}

func run(args []string, stdin io.Reader) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}
	monitor.SetLogLevel(o.cfg.LogLevel)

	var samples []types.Sample
	if o.in != "" {
		samples, err = readSamples(o.in, stdin)
	} else {
		samples, err = fetchSamples(o.cfg)
	}
	if err != nil {
		return err
	}

	data, err := render(samples, o.cfg, o.dpr)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}
	log.Infof("wrote %s (%d samples, %s)", o.out, len(samples), humanize.Bytes(uint64(len(data))))
	return nil
}

func fetchSamples(cfg *config.Config) ([]types.Sample, error) {
	tf, err := monitor.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	snap, err := monitor.LoadSnapshot(ctx, monitor.NewClient(cfg.APIURL), tf)
	if err != nil {
		return nil, err
	}
	if snap.LatestErr != nil {
		log.Warnf("latest sample unavailable: %v", snap.LatestErr)
	}
	return snap.Series(), nil
}

// readSamples accepts a bare JSON array of samples or an API envelope with a data array.
func readSamples(path string, stdin io.Reader) ([]types.Sample, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("no samples in input")
	}
	if b[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		b = env.Data
	}
	var samples []types.Sample
	if err := json.Unmarshal(b, &samples); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// render draws the chart once and returns an opaque PNG.
func render(samples []types.Sample, cfg *config.Config, dpr float64) ([]byte, error) {
	surface, err := chart.NewRasterSurface(cfg.Window.Width, cfg.Window.Height, dpr)
	if err != nil {
		return nil, err
	}
	r := chart.New(surface, nil, nil, cfg.ChartConfig())
	defer r.Dispose()
	r.ReplaceSeries(samples)

	src := surface.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), &image.Uniform{C: backdrop(r.Options().Colors)}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// backdrop picks the page color behind the transparent chart: near black under light text,
// white under dark text.
func backdrop(p chart.Palette) color.RGBA {
	text, ok := colorful.MakeColor(p.Text)
	if ok {
		if l, _, _ := text.Lab(); l < 0.5 {
			return color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
	}
	return color.RGBA{R: 18, G: 18, B: 18, A: 255}
}

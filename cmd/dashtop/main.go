// Command dashtop is the terminal view of the network performance dashboard: a braille line
// plot of download/upload speed with the latest values, refreshed live from the metrics API.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/config"
	"github.com/iafilius/netperfdash/src/monitor"
	"github.com/iafilius/netperfdash/src/types"
)

type testResult struct {
	res monitor.ProtocolResult
	err error
}

type loadResult struct {
	tf   monitor.Timeframe
	snap monitor.Snapshot
	err  error
}

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	logPath := flag.String("log", "", "append logs to this file while the UI is up (default: discard)")
	flag.Parse()
	lg := monitor.NewLogger("dashtop")
	cfg, err := flags.Load()
	if err != nil {
		lg.Errorf("%v", err)
		os.Exit(2)
	}
	monitor.SetLogLevel(cfg.LogLevel)

	// the terminal belongs to termui from here on
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			lg.Errorf("open log: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}

	if err := ui.Init(); err != nil {
		lg.Errorf("failed to init termui: %v", err)
		os.Exit(1)
	}
	defer ui.Close()
	monitor.SetLogOutput(logOut)
	defer monitor.SetLogOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := monitor.NewClient(cfg.APIURL)
	tf, _ := monitor.ParseTimeframe(cfg.Timeframe)
	hist := newHistory(chart.DefaultOptions().Merge(cfg.ChartConfig()).MaxDataPoints)

	plot := widgets.NewPlot()
	plot.Title = " Download / Upload (Mbps) "
	plot.Marker = widgets.MarkerBraille
	plot.LineColors = []ui.Color{ui.ColorGreen, ui.ColorCyan}
	plot.AxesColor = ui.ColorWhite
	plot.Data = hist.plotData()

	table := widgets.NewTable()
	table.Title = " Latest "
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.RowSeparator = false
	table.BorderStyle.Fg = ui.ColorGreen
	table.Rows = hist.tableRows()

	status := widgets.NewParagraph()
	status.Border = false

	grid := ui.NewGrid()
	termWidth, termHeight := ui.TerminalDimensions()
	grid.SetRect(0, 0, termWidth, termHeight)
	grid.Set(
		ui.NewRow(0.95,
			ui.NewCol(0.7, plot),
			ui.NewCol(0.3, table),
		),
		ui.NewRow(0.05, status),
	)

	samples := make(chan types.Sample, 16)
	pollErrs := make(chan error, 4)
	loads := make(chan loadResult, 1)
	wifis := make(chan monitor.WifiSignal, 1)
	tests := make(chan testResult, 1)

	onSample := func(s types.Sample) {
		select {
		case samples <- s:
		case <-ctx.Done():
		}
	}
	poller := monitor.NewPoller(client, cfg.PollInterval, onSample)
	poller.OnError(func(err error) {
		select {
		case pollErrs <- err:
		default:
		}
	})
	go poller.Run(ctx, false)
	if cfg.StreamURL != "" {
		go func() {
			if err := monitor.NewStream(cfg.StreamURL, onSample).Run(ctx); err != nil {
				lg.Warnf("stream: %v", err)
			}
		}()
	}

	readWifi := func() {
		go func() {
			wctx, cancel := context.WithTimeout(ctx, 20*time.Second)
			defer cancel()
			w, err := client.WifiSignal(wctx)
			if err != nil {
				lg.Debugf("wifi signal: %v", err)
				return
			}
			select {
			case wifis <- w:
			case <-ctx.Done():
			}
		}()
	}
	protocol := monitor.Protocols[len(monitor.Protocols)-1]
	runTest := func() {
		protocol = nextProtocol(protocol)
		hist.testing = protocol
		p := protocol
		go func() {
			tctx, cancel := context.WithTimeout(ctx, monitor.DefaultTestTimeout)
			defer cancel()
			res, err := client.ProtocolTest(tctx, p)
			select {
			case tests <- testResult{res: res, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	var loadCancel context.CancelFunc
	reload := func() {
		if loadCancel != nil {
			loadCancel()
		}
		var lctx context.Context
		lctx, loadCancel = context.WithTimeout(ctx, time.Minute)
		want := tf
		go func(lctx context.Context) {
			snap, err := monitor.LoadSnapshot(lctx, client, want)
			select {
			case loads <- loadResult{tf: want, snap: snap, err: err}:
			case <-ctx.Done():
			}
		}(lctx)
	}
	defer func() {
		if loadCancel != nil {
			loadCancel()
		}
	}()

	var (
		lastUpdate time.Time
		failures   int
		lastErr    error
	)
	redraw := func() {
		plot.Data = hist.plotData()
		table.Rows = hist.tableRows()
		status.Text = statusLine(string(tf), len(hist.samples), lastUpdate, failures, lastErr)
		ui.Render(grid)
	}
	updated := func() {
		lastUpdate, failures, lastErr = time.Now(), 0, nil
	}

	reload()
	readWifi()
	redraw()

	uiEvents := ui.PollEvents()
	const tick = 5 * time.Second
	ticks := 0
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case e := <-uiEvents:
			switch {
			case e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>"):
				return
			case e.Type == ui.KeyboardEvent && e.ID == "t":
				tf = nextTimeframe(tf)
				reload()
				redraw()
			case e.Type == ui.KeyboardEvent && e.ID == "r":
				reload()
				readWifi()
			case e.Type == ui.KeyboardEvent && e.ID == "p":
				if hist.testing == "" {
					runTest()
					redraw()
				}
			case e.Type == ui.ResizeEvent:
				payload := e.Payload.(ui.Resize)
				grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				redraw()
			}
		case res := <-loads:
			if res.tf != tf || errors.Is(res.err, context.Canceled) {
				continue
			}
			if res.err != nil {
				lg.Warnf("reload %s: %v", res.tf, res.err)
				lastErr = res.err
			} else {
				hist.replace(res.snap.Series())
				updated()
				lg.Infof("loaded %d samples for %s", len(hist.samples), res.tf)
			}
			redraw()
		case s := <-samples:
			hist.add(s)
			updated()
			redraw()
		case w := <-wifis:
			hist.wifi = &w
			redraw()
		case tr := <-tests:
			if tr.err != nil {
				lg.Warnf("protocol test %s: %v", hist.testing, tr.err)
				hist.test, hist.testErr = nil, tr.err
			} else {
				hist.test, hist.testErr = &tr.res, nil
			}
			hist.testing = ""
			redraw()
		case err := <-pollErrs:
			failures++
			lastErr = err
			redraw()
		case <-ticker.C:
			ticks++
			if time.Duration(ticks)*tick >= cfg.PollInterval {
				ticks = 0
				readWifi()
			}
			redraw()
		}
	}
}

// nextProtocol cycles through the measurable protocols.
func nextProtocol(p monitor.Protocol) monitor.Protocol {
	for i, known := range monitor.Protocols {
		if known == p {
			return monitor.Protocols[(i+1)%len(monitor.Protocols)]
		}
	}
	return monitor.Protocols[0]
}

// nextTimeframe cycles through the served windows.
func nextTimeframe(tf monitor.Timeframe) monitor.Timeframe {
	for i, known := range monitor.Timeframes {
		if known == tf {
			return monitor.Timeframes[(i+1)%len(monitor.Timeframes)]
		}
	}
	return monitor.Timeframes[0]
}


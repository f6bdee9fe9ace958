// Command netdash is the desktop network performance dashboard: a live download/upload chart
// with hover tooltips fed by the metrics API.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/config"
	"github.com/iafilius/netperfdash/src/monitor"
	"github.com/iafilius/netperfdash/src/types"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()
	lg := monitor.NewLogger("netdash")
	cfg, err := flags.Load()
	if err != nil {
		lg.Errorf("%v", err)
		os.Exit(2)
	}
	monitor.SetLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := monitor.NewClient(cfg.APIURL)
	if cfg.MetricsAddr != "" {
		m, err := monitor.NewMetrics()
		if err != nil {
			lg.Errorf("%v", err)
			os.Exit(1)
		}
		client.Metrics = m
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				lg.Warnf("%v", err)
			}
		}()
		lg.Infof("serving metrics on %s/metrics", cfg.MetricsAddr)
	}

	a := app.NewWithID("com.netperfdash.viewer")
	a.Settings().SetTheme(themeFor(cfg.Theme))
	w := a.NewWindow("Network Performance")

	host, err := newChartHost(cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		lg.Errorf("chart surface: %v", err)
		os.Exit(1)
	}
	renderer := chart.New(host.surface, host, fyneFrames{do: fyne.Do}, cfg.ChartConfig())

	tf, _ := monitor.ParseTimeframe(cfg.Timeframe)
	d := &dashboard{
		app:       a,
		window:    w,
		client:    client,
		renderer:  renderer,
		latest:    widget.NewLabel("↓ –   ↑ –"),
		status:    widget.NewLabel(""),
		wifi:      widget.NewLabel("Wi-Fi –"),
		log:       lg,
		ctx:       ctx,
		timeframe: tf,
		protocol:  monitor.ProtocolTCP,
	}

	timeframes := make([]string, len(monitor.Timeframes))
	for i, t := range monitor.Timeframes {
		timeframes[i] = string(t)
	}
	// Wire select callbacks after the initial selection.
	tfSelect := widget.NewSelect(timeframes, nil)
	tfSelect.SetSelected(string(tf))
	tfSelect.OnChanged = d.setTimeframe
	themeSelect := widget.NewSelect([]string{"dark", "light"}, nil)
	themeSelect.SetSelected(cfg.Theme)
	themeSelect.OnChanged = d.setTheme
	protocols := make([]string, len(monitor.Protocols))
	for i, p := range monitor.Protocols {
		protocols[i] = string(p)
	}
	protoSelect := widget.NewSelect(protocols, nil)
	protoSelect.SetSelected(string(d.protocol))
	protoSelect.OnChanged = d.setProtocol
	d.testBtn = widget.NewButtonWithIcon("Run test", theme.MediaPlayIcon(), d.runProtocolTest)
	refreshBtn := widget.NewButtonWithIcon("Refresh", theme.ViewRefreshIcon(), func() {
		d.reload()
		d.refreshWifi()
	})
	exportBtn := widget.NewButtonWithIcon("Export PNG", theme.DocumentSaveIcon(), d.export)

	top := container.NewHBox(
		widget.NewLabel("Timeframe:"), tfSelect,
		widget.NewLabel("Theme:"), themeSelect,
		refreshBtn, exportBtn,
		widget.NewLabel("Protocol:"), protoSelect, d.testBtn,
		layout.NewSpacer(), d.wifi, d.latest,
	)
	w.SetContent(container.NewBorder(top, d.status, nil, nil, host))
	w.Resize(fyne.NewSize(float32(cfg.Window.Width), float32(cfg.Window.Height)+90))

	onSample := func(s types.Sample) { fyne.Do(func() { d.addSample(s) }) }
	poller := monitor.NewPoller(client, cfg.PollInterval, onSample).WithMetrics(client.Metrics)
	poller.OnError(func(err error) { fyne.Do(func() { d.pollFailed(err) }) })
	go poller.Run(ctx, false)

	if cfg.StreamURL != "" {
		st := monitor.NewStream(cfg.StreamURL, onSample)
		st.Metrics = client.Metrics
		go func() {
			if err := st.Run(ctx); err != nil {
				lg.Warnf("stream: %v", err)
			}
		}()
	}

	// keep the relative "Updated ..." text fresh between polls
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fyne.Do(d.refreshStatus)
			}
		}
	}()
	go func() {
		t := time.NewTicker(cfg.PollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				d.refreshWifi()
			}
		}
	}()

	w.SetOnClosed(func() {
		cancel()
		renderer.Dispose()
	})
	d.reload()
	d.refreshWifi()
	w.ShowAndRun()
}

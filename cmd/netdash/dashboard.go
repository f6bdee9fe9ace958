package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/monitor"
	"github.com/iafilius/netperfdash/src/types"
)

// dashboard is the window state. Every method runs on the Fyne main goroutine.
type dashboard struct {
	app      fyne.App
	window   fyne.Window
	client   *monitor.Client
	renderer *chart.Renderer
	latest   *widget.Label
	status   *widget.Label
	wifi     *widget.Label
	testBtn  *widget.Button
	log      monitor.Logger

	ctx        context.Context
	loadCancel context.CancelFunc
	loadGen    int
	timeframe  monitor.Timeframe
	protocol   monitor.Protocol
	lastUpdate time.Time
	failures   int
	lastErr    error
}

// reload replaces the series with a fresh snapshot of the selected timeframe. A reload that is
// overtaken by a newer one is dropped.
func (d *dashboard) reload() {
	if d.loadCancel != nil {
		d.loadCancel()
	}
	ctx, cancel := context.WithTimeout(d.ctx, time.Minute)
	d.loadCancel = cancel
	d.loadGen++
	gen := d.loadGen
	tf := d.timeframe
	d.status.SetText(fmt.Sprintf("Loading %s history…", tf))
	go func() {
		defer cancel()
		snap, err := monitor.LoadSnapshot(ctx, d.client, tf)
		fyne.Do(func() {
			if gen != d.loadGen {
				return
			}
			if err != nil {
				d.log.Warnf("reload %s: %v", tf, err)
				d.lastErr = err
				d.refreshStatus()
				return
			}
			series := snap.Series()
			d.renderer.ReplaceSeries(series)
			if n := len(series); n > 0 {
				d.markUpdated(series[n-1])
			} else {
				d.refreshStatus()
			}
			d.log.Infof("loaded %d samples for %s", len(series), tf)
		})
	}()
}

func (d *dashboard) setTimeframe(name string) {
	tf, err := monitor.ParseTimeframe(name)
	if err != nil || tf == d.timeframe {
		return
	}
	d.timeframe = tf
	d.reload()
}

func (d *dashboard) setProtocol(name string) {
	if p, err := monitor.ParseProtocol(name); err == nil {
		d.protocol = p
	}
}

// runProtocolTest measures the selected protocol on the server and shows the result. The
// button stays disabled while a test runs.
func (d *dashboard) runProtocolTest() {
	p := d.protocol
	d.testBtn.Disable()
	d.testBtn.SetText("Testing…")
	go func() {
		ctx, cancel := context.WithTimeout(d.ctx, monitor.DefaultTestTimeout)
		defer cancel()
		res, err := d.client.ProtocolTest(ctx, p)
		fyne.Do(func() {
			d.testBtn.SetText("Run test")
			d.testBtn.Enable()
			if err != nil {
				d.log.Warnf("protocol test %s: %v", p, err)
				dialog.ShowError(fmt.Errorf("%s test failed: %w", strings.ToUpper(string(p)), err), d.window)
				return
			}
			dialog.ShowInformation(strings.ToUpper(string(p))+" test", protocolText(res), d.window)
		})
	}()
}

// refreshWifi reads the Wi-Fi signal in the background. Safe to call from any goroutine.
func (d *dashboard) refreshWifi() {
	go func() {
		ctx, cancel := context.WithTimeout(d.ctx, 20*time.Second)
		defer cancel()
		w, err := d.client.WifiSignal(ctx)
		fyne.Do(func() {
			if err != nil {
				d.log.Debugf("wifi signal: %v", err)
				d.wifi.SetText("Wi-Fi –")
				return
			}
			d.wifi.SetText("Wi-Fi " + w.String())
		})
	}()
}

func (d *dashboard) setTheme(name string) {
	if d.renderer.SetTheme(name) {
		d.app.Settings().SetTheme(themeFor(name))
	}
}

func (d *dashboard) addSample(s types.Sample) {
	d.renderer.AppendSample(s)
	d.markUpdated(s)
}

func (d *dashboard) pollFailed(err error) {
	d.failures++
	d.lastErr = err
	d.refreshStatus()
}

func (d *dashboard) markUpdated(s types.Sample) {
	d.lastUpdate = time.Now()
	d.failures = 0
	d.lastErr = nil
	d.latest.SetText(latestText(s))
	d.refreshStatus()
}

func (d *dashboard) refreshStatus() {
	d.status.SetText(statusText(d.lastUpdate, time.Now(), d.failures, d.lastErr))
}

func (d *dashboard) export() {
	data, err := d.renderer.ExportSnapshot()
	if err != nil {
		dialog.ShowError(err, d.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if _, err := wc.Write(data); err != nil {
			dialog.ShowError(err, d.window)
		}
	}, d.window)
	fs.SetFileName(exportFileName(d.timeframe, time.Now()))
	fs.Show()
}

func latestText(s types.Sample) string {
	text := fmt.Sprintf("↓ %s   ↑ %s", chart.FormatSpeed(s.DownloadSpeed), chart.FormatSpeed(s.UploadSpeed))
	if lat, ok := s.Extra["latency"]; ok {
		text += fmt.Sprintf("   latency %.1f ms", lat)
	}
	return text
}

func protocolText(res monitor.ProtocolResult) string {
	s := res.Sample
	lines := []string{
		"Download: " + chart.FormatSpeed(s.DownloadSpeed),
		"Upload: " + chart.FormatSpeed(s.UploadSpeed),
	}
	for _, k := range s.ExtraKeys() {
		lines = append(lines, fmt.Sprintf("%s: %.1f", k, s.Extra[k]))
	}
	if res.Overhead != "" {
		lines = append(lines, "Overhead: "+res.Overhead)
	}
	if res.Notes != "" {
		lines = append(lines, res.Notes)
	}
	if res.Error != "" {
		lines = append(lines, "Error: "+res.Error)
	}
	return strings.Join(lines, "\n")
}

func statusText(last, now time.Time, failures int, lastErr error) string {
	updated := "No data yet"
	if !last.IsZero() {
		updated = "Updated " + humanize.RelTime(last, now, "ago", "from now")
	}
	switch {
	case failures > 0 && lastErr != nil:
		return fmt.Sprintf("%s · %d failed refreshes: %v", updated, failures, lastErr)
	case lastErr != nil:
		return fmt.Sprintf("%s · %v", updated, lastErr)
	}
	return updated
}

func exportFileName(tf monitor.Timeframe, t time.Time) string {
	return fmt.Sprintf("netperf-%s-%s.png", tf, t.Format("20060102-150405"))
}

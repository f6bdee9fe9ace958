package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iafilius/netperfdash/src/chart"
	"github.com/iafilius/netperfdash/src/monitor"
	"github.com/iafilius/netperfdash/src/types"
)

// history is the bounded sample window shown in the terminal, oldest first, plus the last
// Wi-Fi reading and protocol test.
type history struct {
	max     int
	samples []types.Sample

	wifi    *monitor.WifiSignal
	test    *monitor.ProtocolResult
	testErr error
	testing monitor.Protocol // protocol of a test in flight
}

func newHistory(max int) *history {
	if max < 1 {
		max = 1
	}
	return &history{max: max}
}

func (h *history) replace(samples []types.Sample) {
	h.samples = append(h.samples[:0:0], samples...)
	h.trim()
}

func (h *history) add(s types.Sample) {
	h.samples = append(h.samples, s)
	h.trim()
}

func (h *history) trim() {
	if over := len(h.samples) - h.max; over > 0 {
		h.samples = append(h.samples[:0:0], h.samples[over:]...)
	}
}

func (h *history) latest() (types.Sample, bool) {
	if len(h.samples) == 0 {
		return types.Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// plotData returns the download and upload lines. The plot widget needs two points per line,
// so a short history is padded by repeating its only value.
func (h *history) plotData() [][]float64 {
	down := make([]float64, 0, len(h.samples)+1)
	up := make([]float64, 0, len(h.samples)+1)
	for _, s := range h.samples {
		down = append(down, s.DownloadSpeed)
		up = append(up, s.UploadSpeed)
	}
	for len(down) < 2 {
		if len(down) == 0 {
			down, up = append(down, 0), append(up, 0)
			continue
		}
		down, up = append(down, down[0]), append(up, up[0])
	}
	return [][]float64{down, up}
}

type stats struct {
	peak, mean float64
}

func (h *history) stats(metric string) stats {
	var st stats
	if len(h.samples) == 0 {
		return st
	}
	var sum float64
	for _, s := range h.samples {
		v := s.Metric(metric)
		sum += v
		if v > st.peak {
			st.peak = v
		}
	}
	st.mean = sum / float64(len(h.samples))
	return st
}

// tableRows renders the latest sample with window peak and mean for the two speeds, then
// every extra metric of the latest sample.
func (h *history) tableRows() [][]string {
	rows := [][]string{{"Metric", "Latest", "Peak", "Mean"}}
	last, ok := h.latest()
	if !ok {
		return append(rows, []string{"No data available", "", "", ""})
	}
	for _, m := range []struct{ name, key string }{
		{"Download", types.KeyDownloadSpeed},
		{"Upload", types.KeyUploadSpeed},
	} {
		st := h.stats(m.key)
		rows = append(rows, []string{m.name,
			chart.FormatSpeed(last.Metric(m.key)), chart.FormatSpeed(st.peak), chart.FormatSpeed(st.mean)})
	}
	for _, k := range last.ExtraKeys() {
		st := h.stats(k)
		rows = append(rows, []string{k,
			fmt.Sprintf("%.1f", last.Extra[k]), fmt.Sprintf("%.1f", st.peak), fmt.Sprintf("%.1f", st.mean)})
	}
	return append(rows, h.extraRows()...)
}

// extraRows shows the Wi-Fi signal and the outcome of the last protocol test.
func (h *history) extraRows() [][]string {
	var rows [][]string
	if h.wifi != nil {
		rows = append(rows, []string{"Wi-Fi", h.wifi.String(), "", ""})
	}
	switch {
	case h.testing != "":
		rows = append(rows, []string{strings.ToUpper(string(h.testing)) + " test", "running…", "", ""})
	case h.testErr != nil:
		rows = append(rows, []string{"Protocol test", "[failed](fg:red)", "", ""})
	case h.test != nil:
		s := h.test.Sample
		result := "↓ " + chart.FormatSpeed(s.DownloadSpeed) + " ↑ " + chart.FormatSpeed(s.UploadSpeed)
		if h.test.Error != "" {
			result += " [" + h.test.Error + "](fg:red)"
		}
		rows = append(rows, []string{strings.ToUpper(string(h.test.Protocol)) + " test", result, "", ""})
	}
	return rows
}

func statusLine(tf string, n int, last time.Time, failures int, lastErr error) string {
	updated := "no data yet"
	if !last.IsZero() {
		updated = "updated " + humanize.Time(last)
	}
	line := fmt.Sprintf("%s · %d samples · %s", tf, n, updated)
	if lastErr != nil {
		line += fmt.Sprintf(" · [%d failed: %v](fg:red)", failures, lastErr)
	}
	return line + "   [t] timeframe  [r] reload  [p] protocol test  [q] quit"
}

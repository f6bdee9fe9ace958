package chart

import (
	"bytes"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/iafilius/netperfdash/src/types"
)

func TestAppendSample_KeepsNewestWithinCapacity(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, utcConfig())
	all := makeSamples(55)
	for _, s := range all {
		r.AppendSample(s)
	}
	got := r.Series()
	if len(got) != 50 {
		t.Fatalf("series length %d want 50", len(got))
	}
	for i, s := range got {
		if !s.Timestamp.Equal(all[i+5].Timestamp) {
			t.Fatalf("series[%d] = %v want %v", i, s.Timestamp, all[i+5].Timestamp)
		}
	}
	labels := r.Labels()
	if len(labels) != len(got) {
		t.Fatalf("labels %d series %d", len(labels), len(got))
	}
	if labels[0].Short != "12:05" || labels[49].Full != "2024-03-01 12:54:00" {
		t.Fatalf("labels not aligned with series: first=%+v last=%+v", labels[0], labels[49])
	}
}

func TestReplaceSeries_KeepsTail(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, Config{MaxDataPoints: Int(3), Location: testBase.Location()})
	in := makeSamples(5)
	r.ReplaceSeries(in)
	got := r.Series()
	if len(got) != 3 {
		t.Fatalf("len %d want 3", len(got))
	}
	if got[0].DownloadSpeed != in[2].DownloadSpeed || got[2].DownloadSpeed != in[4].DownloadSpeed {
		t.Fatalf("expected samples 2..4, got %+v", got)
	}
	// the caller's slice must not alias the buffer
	in[4].DownloadSpeed = -1
	if r.Series()[2].DownloadSpeed == -1 {
		t.Fatalf("series aliases caller slice")
	}

	r.ReplaceSeries(nil)
	if len(r.Series()) != 0 || len(r.Labels()) != 0 {
		t.Fatalf("replace with empty input should clear the buffer")
	}
}

func TestSeries_ExtraNotSharedWithCaller(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, utcConfig())
	in := makeSamples(2)
	in[1].Extra = map[string]float64{"latency": 18}
	r.ReplaceSeries(in)
	in[1].Extra["latency"] = 999

	live := types.Sample{Timestamp: testBase.Add(time.Hour), Extra: map[string]float64{"jitter": 2}}
	r.AppendSample(live)
	live.Extra["jitter"] = 999

	got := r.Series()
	if got[1].Extra["latency"] != 18 || got[2].Extra["jitter"] != 2 {
		t.Fatalf("stored samples changed with the caller's maps: %+v", got)
	}
}

func TestLocateSample_Monotonic(t *testing.T) {
	surf := newRecordingSurface(1000, 400)
	r := New(surf, nil, nil, utcConfig())
	r.ReplaceSeries(makeSamples(10))

	pad := r.Options().Padding
	last := -1
	for x := pad; x <= surf.w-pad; x += 3 {
		loc, ok := r.LocateSample(x, 200)
		if !ok {
			t.Fatalf("no match inside the plot at x=%.0f", x)
		}
		if loc.Index < last {
			t.Fatalf("index went backwards at x=%.0f: %d after %d", x, loc.Index, last)
		}
		last = loc.Index
	}
	if loc, _ := r.LocateSample(pad, 0); loc.Index != 0 {
		t.Fatalf("left edge index %d want 0", loc.Index)
	}
	if loc, _ := r.LocateSample(surf.w-pad, 0); loc.Index != 9 {
		t.Fatalf("right edge index %d want 9", loc.Index)
	}
	// rounds to the nearest sample, y plays no part
	step := (surf.w - 2*pad) / 9
	a, _ := r.LocateSample(pad+step*3.4, -500)
	b, _ := r.LocateSample(pad+step*3.6, 5000)
	if a.Index != 3 || b.Index != 4 {
		t.Fatalf("nearest rounding: got %d and %d want 3 and 4", a.Index, b.Index)
	}
	if b.Sample.DownloadSpeed != 14 {
		t.Fatalf("located sample mismatch: %+v", b.Sample)
	}
}

func TestLocateSample_NoMatch(t *testing.T) {
	surf := newRecordingSurface(1000, 400)
	r := New(surf, nil, nil, utcConfig())
	if _, ok := r.LocateSample(500, 200); ok {
		t.Fatalf("empty series must not match")
	}
	r.ReplaceSeries(makeSamples(10))
	for _, x := range []float64{0, -100, surf.w, 5000, math.NaN(), math.Inf(1)} {
		if loc, ok := r.LocateSample(x, 200); ok {
			t.Fatalf("x=%v should be out of range, got index %d", x, loc.Index)
		}
	}
	// slightly left of the plot still rounds to the first sample
	if loc, ok := r.LocateSample(r.Options().Padding-10, 200); !ok || loc.Index != 0 {
		t.Fatalf("near-left pointer: ok=%v index=%d", ok, loc.Index)
	}

	narrow := New(newRecordingSurface(100, 100), nil, nil, utcConfig())
	narrow.ReplaceSeries(makeSamples(3))
	if _, ok := narrow.LocateSample(50, 50); ok {
		t.Fatalf("non-positive plot width must not match")
	}
}

func TestSetPointer_RedrawsOnlyOnChange(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, utcConfig())
	r.ReplaceSeries(makeSamples(10))
	base := r.renders

	r.SetPointer(500, 200)
	if !r.Tooltip().Visible || r.renders != base+1 {
		t.Fatalf("match should show tooltip and redraw once: visible=%v renders=%d", r.Tooltip().Visible, r.renders-base)
	}
	r.SetPointer(0, 0)
	if r.Tooltip().Visible || r.renders != base+2 {
		t.Fatalf("leaving the plot should hide and redraw: renders=%d", r.renders-base)
	}
	r.SetPointer(0, 0)
	r.ClearPointer()
	if r.renders != base+2 {
		t.Fatalf("no-op pointer updates redrew: renders=%d", r.renders-base)
	}
	r.SetPointer(r.Options().Padding, 200)
	r.ClearPointer()
	if r.Tooltip().Visible || r.renders != base+4 {
		t.Fatalf("ClearPointer should hide visible tooltip: renders=%d", r.renders-base)
	}
}

func TestSetPointer_DisabledTooltip(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, Config{ShowTooltip: Bool(false)})
	r.ReplaceSeries(makeSamples(10))
	base := r.renders
	r.SetPointer(500, 200)
	if r.Tooltip().Visible || r.renders != base {
		t.Fatalf("tooltip disabled but pointer changed state")
	}
}

func TestEvents_DriveRenderer(t *testing.T) {
	surf := newRecordingSurface(1000, 400)
	ev := &fakeEvents{}
	r := New(surf, ev, nil, utcConfig())
	r.ReplaceSeries(makeSamples(10))

	ev.move(500, 200)
	if !r.Tooltip().Visible {
		t.Fatalf("pointer move event did not reach the renderer")
	}
	ev.leave()
	if r.Tooltip().Visible {
		t.Fatalf("pointer leave event did not hide the tooltip")
	}
	ev.resize(800, 300)
	if w, h := surf.Size(); w != 800 || h != 300 {
		t.Fatalf("resize not forwarded: %vx%v", w, h)
	}
}

func TestSetTheme(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, utcConfig())
	base := r.renders
	if r.SetTheme("sepia") || r.SetTheme("Light") {
		t.Fatalf("unknown theme accepted")
	}
	if r.renders != base || r.Options().Colors != themes["dark"] {
		t.Fatalf("unknown theme changed state")
	}
	if !r.SetTheme("light") {
		t.Fatalf("light theme rejected")
	}
	if r.Options().Colors != themes["light"] || r.renders != base+1 {
		t.Fatalf("light theme not applied")
	}
}

func TestConfigure_LowerCapacityTrims(t *testing.T) {
	r := New(newRecordingSurface(1000, 400), nil, nil, utcConfig())
	all := makeSamples(50)
	r.ReplaceSeries(all)
	r.SetPointer(500, 200)

	r.Configure(Config{MaxDataPoints: Int(20), ShowTooltip: Bool(false), Location: testBase.Location()})
	got := r.Series()
	if len(got) != 20 || len(r.Labels()) != 20 {
		t.Fatalf("series %d labels %d want 20", len(got), len(r.Labels()))
	}
	if !got[0].Timestamp.Equal(all[30].Timestamp) {
		t.Fatalf("oldest entries not evicted first: %v", got[0].Timestamp)
	}
	if r.Tooltip().Visible {
		t.Fatalf("tooltip should hide when disabled")
	}
	// Configure starts from defaults again
	if r.Options().Padding != 60 || !r.Options().Smoothing {
		t.Fatalf("configure did not merge over defaults: %+v", r.Options())
	}
}

func TestDispose_CancelsFrameAndDetaches(t *testing.T) {
	ev := &fakeEvents{}
	frames := &fakeFrames{}
	r := New(newRecordingSurface(1000, 400), ev, frames, utcConfig())
	if r.renders != 0 || frames.requested != 1 {
		t.Fatalf("construction should schedule, not draw: renders=%d requested=%d", r.renders, frames.requested)
	}
	frames.flush()
	if r.renders != 1 {
		t.Fatalf("frame did not draw")
	}

	r.AppendSample(makeSamples(1)[0])
	r.AppendSample(makeSamples(2)[1])
	if frames.requested != 2 {
		t.Fatalf("invalidations did not coalesce: requested=%d", frames.requested)
	}

	r.Dispose()
	if frames.cancelled != 1 {
		t.Fatalf("pending frame not cancelled")
	}
	if ev.detached != 3 || ev.move != nil {
		t.Fatalf("listeners not detached: %d", ev.detached)
	}
	frames.flush()
	r.AppendSample(makeSamples(3)[2])
	r.Render()
	r.Dispose()
	if r.renders != 1 || frames.requested != 2 || ev.detached != 3 {
		t.Fatalf("activity after dispose: renders=%d requested=%d detached=%d", r.renders, frames.requested, ev.detached)
	}
}

func TestFrameLoop_States(t *testing.T) {
	frames := &fakeFrames{}
	draws := 0
	l := newFrameLoop(frames, func() { draws++ })
	if l.state.String() != "idle" {
		t.Fatalf("initial state %s", l.state)
	}
	l.invalidate()
	l.invalidate()
	if l.state != frameScheduled || frames.requested != 1 {
		t.Fatalf("state %s requested %d", l.state, frames.requested)
	}
	frames.flush()
	if l.state != frameIdle || draws != 1 {
		t.Fatalf("after frame: state %s draws %d", l.state, draws)
	}
	l.invalidate()
	l.dispose()
	frames.flush()
	if l.state.String() != "disposed" || draws != 1 || frames.cancelled != 1 {
		t.Fatalf("after dispose: state %s draws %d cancelled %d", l.state, draws, frames.cancelled)
	}
	l.invalidate()
	if frames.requested != 2 {
		t.Fatalf("disposed loop requested a frame")
	}

	sync := newFrameLoop(nil, func() { draws++ })
	sync.invalidate()
	if draws != 2 || sync.state != frameIdle {
		t.Fatalf("loop without scheduler should draw synchronously")
	}
}

func TestExportSnapshot_DeviceResolution(t *testing.T) {
	surf, err := NewRasterSurface(400, 300, 2)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	r := New(surf, nil, nil, utcConfig())
	r.ReplaceSeries(makeSamples(5))
	data, err := r.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 800 || cfg.Height != 600 {
		t.Fatalf("png %dx%d want 800x600", cfg.Width, cfg.Height)
	}
}

func TestComputeChartDimensions(t *testing.T) {
	cases := []struct {
		in, wantW float64
	}{
		{100, 480},
		{480, 480},
		{1100, 1100},
		{3000, 3000},
	}
	for _, c := range cases {
		w, h := ComputeChartDimensions(c.in)
		if w != c.wantW {
			t.Fatalf("input %v => width %v want %v", c.in, w, c.wantW)
		}
		if h < 240 || h > 520 {
			t.Fatalf("height clamp violated for input %v => h=%v", c.in, h)
		}
	}
}

package chart

import (
	"fmt"
	"time"
)

// FormatSpeed renders a speed given in Mbps with an adaptive unit:
// >=1000 as Gbps, >=1 as Mbps (one decimal), below that as whole Kbps.
func FormatSpeed(mbps float64) string {
	switch {
	case mbps >= 1000:
		return fmt.Sprintf("%.1f Gbps", mbps/1000)
	case mbps >= 1:
		return fmt.Sprintf("%.1f Mbps", mbps)
	default:
		return fmt.Sprintf("%.0f Kbps", mbps*1000)
	}
}

// Label is the cached pair of time strings for one sample.
type Label struct {
	Short string // axis form, HH:MM
	Full  string // tooltip form
}

const (
	shortTimeLayout = "15:04"
	fullTimeLayout  = "2006-01-02 15:04:05"
)

func makeLabel(t time.Time, loc *time.Location) Label {
	if loc != nil {
		t = t.In(loc)
	}
	return Label{Short: t.Format(shortTimeLayout), Full: t.Format(fullTimeLayout)}
}

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"time"
)

// Metric keys understood by the dashboard. Any other numeric field of a sample is kept in Extra.
const (
	KeyTimestamp     = "timestamp"
	KeyDownloadSpeed = "download_speed"
	KeyUploadSpeed   = "upload_speed"
)

// Sample is one timestamped network measurement as returned by the metrics API.
// Speeds are in Mbps. A sample is treated as immutable once handed to a renderer.
type Sample struct {
	Timestamp     time.Time
	DownloadSpeed float64
	UploadSpeed   float64
	// Extra holds the remaining numeric fields (latency, jitter, packet_loss, ...).
	Extra map[string]float64
}

// Metric returns the named metric, or 0 when the sample does not carry it.
func (s Sample) Metric(key string) float64 {
	switch key {
	case KeyDownloadSpeed:
		return s.DownloadSpeed
	case KeyUploadSpeed:
		return s.UploadSpeed
	}
	return s.Extra[key]
}

// Clone returns a copy that shares no map with s.
func (s Sample) Clone() Sample {
	s.Extra = maps.Clone(s.Extra)
	return s
}

// ExtraKeys returns the keys of Extra in sorted order.
func (s Sample) ExtraKeys() []string {
	if len(s.Extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// zoneless layouts cover Python's datetime.isoformat() output, which omits the offset.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 strings, zoneless ISO-8601 strings (local time) and epoch
// numbers. Numbers >= 1e12 are epoch milliseconds, smaller ones epoch seconds.
func ParseTimestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, errors.New("empty timestamp")
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, nil
		}
		for _, layout := range zonelessLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	case float64:
		return epochTime(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", t.String(), err)
		}
		return epochTime(f)
	case nil:
		return time.Time{}, errors.New("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func epochTime(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, fmt.Errorf("invalid epoch timestamp %v", f)
	}
	if f >= 1e12 {
		ms := int64(f)
		return time.UnixMilli(ms), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), nil
}

// UnmarshalJSON decodes an API sample. Missing speeds decode as 0; non-numeric extras are dropped.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw[KeyTimestamp])
	if err != nil {
		return fmt.Errorf("sample timestamp: %w", err)
	}
	out := Sample{Timestamp: ts}
	for k, v := range raw {
		if k == KeyTimestamp {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		switch k {
		case KeyDownloadSpeed:
			out.DownloadSpeed = f
		case KeyUploadSpeed:
			out.UploadSpeed = f
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]float64)
			}
			out.Extra[k] = f
		}
	}
	*s = out
	return nil
}

// MarshalJSON writes the flat API shape back out (timestamp as RFC 3339).
func (s Sample) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(s.Extra)+3)
	for k, v := range s.Extra {
		m[k] = v
	}
	m[KeyTimestamp] = s.Timestamp.Format(time.RFC3339Nano)
	m[KeyDownloadSpeed] = s.DownloadSpeed
	m[KeyUploadSpeed] = s.UploadSpeed
	return json.Marshal(m)
}

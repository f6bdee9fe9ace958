package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iafilius/netperfdash/src/types"
)

// Protocol selects an on-demand protocol measurement.
type Protocol string

const (
	ProtocolTCP   Protocol = "tcp"
	ProtocolUDP   Protocol = "udp"
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolICMP  Protocol = "icmp"
)

// Protocols lists the protocols the API can measure.
var Protocols = []Protocol{ProtocolTCP, ProtocolUDP, ProtocolHTTP, ProtocolHTTPS, ProtocolICMP}

// ParseProtocol validates a protocol name, case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Protocols {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown protocol %q (want tcp, udp, http, https or icmp)", s)
}

const (
	endpointProtocolTest = "protocol_test"
	endpointWifiSignal   = "wifi_signal"

	// DefaultTestTimeout bounds one protocol test, which runs a full bandwidth measurement.
	DefaultTestTimeout = 2 * time.Minute
)

// ProtocolResult is the outcome of one protocol test. Protocol specific numbers such as
// handshake_time or request_time are in Sample.Extra.
type ProtocolResult struct {
	Protocol Protocol
	Sample   types.Sample
	Overhead string // connection_overhead
	Notes    string
	// Error is set when the measurement ran but a protocol specific step failed.
	Error string
}

// ProtocolTest asks the API to measure one protocol. A test is never retried: every attempt
// is a full measurement on the server.
func (c *Client) ProtocolTest(ctx context.Context, p Protocol) (ProtocolResult, error) {
	if _, err := ParseProtocol(string(p)); err != nil {
		return ProtocolResult{}, err
	}
	tc := *c
	hc := *c.httpClient()
	hc.Timeout = c.TestTimeout
	if hc.Timeout <= 0 {
		hc.Timeout = DefaultTestTimeout
	}
	tc.HTTPClient = &hc
	tc.MaxRetries = 0

	res := ProtocolResult{Protocol: p}
	err := tc.fetch(ctx, endpointProtocolTest, "/api/protocol_test/"+string(p), func(env envelope) error {
		var aux struct {
			Download *float64 `json:"download_speed"`
			Overhead string   `json:"connection_overhead"`
			Notes    string   `json:"notes"`
			Error    string   `json:"error"`
		}
		if err := json.Unmarshal(env.Data, &aux); err != nil {
			return err
		}
		// unsupported protocols and failed collections carry only an error
		if aux.Error != "" && aux.Download == nil {
			return &APIError{Endpoint: endpointProtocolTest, StatusCode: 200, Message: aux.Error}
		}
		if err := json.Unmarshal(env.Data, &res.Sample); err != nil {
			return err
		}
		res.Overhead, res.Notes, res.Error = aux.Overhead, aux.Notes, aux.Error
		return nil
	})
	if err != nil {
		return ProtocolResult{}, err
	}
	return res, nil
}

// WifiSignal is the Wi-Fi signal strength of the measuring host.
type WifiSignal struct {
	Percentage float64 `json:"percentage"`
	DBm        float64 `json:"dbm"`
	// Note is set when the server could not read the radio and reports a placeholder.
	Note string `json:"note"`
}

// Simulated reports whether the server fell back to placeholder values.
func (w WifiSignal) Simulated() bool { return w.Note != "" }

func (w WifiSignal) String() string {
	s := fmt.Sprintf("%.0f dBm (%.0f%%)", w.DBm, w.Percentage)
	if w.Simulated() {
		s += " simulated"
	}
	return s
}

// WifiSignal fetches the current Wi-Fi signal. A bare number in place of the object is read
// as dBm.
func (c *Client) WifiSignal(ctx context.Context) (WifiSignal, error) {
	var w WifiSignal
	err := c.fetch(ctx, endpointWifiSignal, "/api/wifi_signal", func(env envelope) error {
		var data struct {
			Signal json.RawMessage `json:"wifi_signal"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		if len(data.Signal) == 0 || string(data.Signal) == "null" {
			return errors.New("response has no wifi_signal")
		}
		var dbm float64
		if err := json.Unmarshal(data.Signal, &dbm); err == nil {
			w = WifiSignal{DBm: dbm, Percentage: dbmPercentage(dbm)}
			return nil
		}
		return json.Unmarshal(data.Signal, &w)
	})
	if err != nil {
		return WifiSignal{}, err
	}
	return w, nil
}

// dbmPercentage maps -100..-30 dBm linearly onto 0..100%.
func dbmPercentage(dbm float64) float64 {
	return min(100, max(0, (dbm+100)*100/70))
}

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Buttons       []ButtonJSON `json:"buttons"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Redis         *LinkStatus  `json:"redis,omitempty"`
	InputErrors   int          `json:"input_errors"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Name           string     `json:"name"`
	Pin            int        `json:"pin"`
	Enabled        bool       `json:"enabled"`
	Pressed        bool       `json:"pressed"`
	Latched        bool       `json:"latched"`
	LastEvent      string     `json:"last_event,omitempty"`
	LastDurationMs uint32     `json:"last_duration_ms"`
	LastEventAt    string     `json:"last_event_at,omitempty"`
	Counts         CountsJSON `json:"event_counts"`
}

// LinkStatus reports a sink's connection state.
type LinkStatus struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"addr"`
}

// MQTTStatus is LinkStatus plus the offline queue depth.
type MQTTStatus struct {
	LinkStatus
	Buffered int `json:"buffered"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Short  int `json:"short"`
	Long   int `json:"long"`
	Double int `json:"double"`
	Latch  int `json:"latch"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// TimingJSON is the JSON representation of the global thresholds.
type TimingJSON struct {
	DebounceMs          uint32 `json:"debounce_ms"`
	ShortPressMinMs     uint32 `json:"short_press_min_ms"`
	LongPressMinMs      uint32 `json:"long_press_min_ms"`
	DoubleClickMaxGapMs uint32 `json:"double_click_max_gap_ms"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64      `json:"poll_ms"`
	HeartbeatMs int64      `json:"heartbeat_ms"`
	Timing      TimingJSON `json:"timing"`
	Backend     string     `json:"backend"`
	Broker      string     `json:"broker"`
	Format      string     `json:"format"`
	HTTPAddr    string     `json:"http_addr"`
}

func buildButtons(snap Snapshot) []ButtonJSON {
	out := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		out[i] = ButtonJSON{
			Name:           b.Name,
			Pin:            b.Pin,
			Enabled:        b.Enabled,
			Pressed:        b.Pressed,
			Latched:        b.Latched,
			LastEvent:      b.LastEvent,
			LastDurationMs: b.LastDurationMs,
			Counts: CountsJSON{
				Short:  b.Counts.Short,
				Long:   b.Counts.Long,
				Double: b.Counts.Double,
				Latch:  b.Counts.Latch,
			},
		}
		if !b.LastEventAt.IsZero() {
			out[i].LastEventAt = b.LastEventAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	t := snap.Config.Timing
	inner := StatusInner{
		Buttons:       buildButtons(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			LinkStatus: LinkStatus{Connected: snap.MQTTConnected, Addr: snap.Config.Broker},
			Buffered:   snap.MQTTBuffered,
		},
		InputErrors: snap.InputErrors,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Timing: TimingJSON{
				DebounceMs:          t.Debounce,
				ShortPressMinMs:     t.ShortPressMin,
				LongPressMinMs:      t.LongPressMin,
				DoubleClickMaxGapMs: t.DoubleClickMaxGap,
			},
			Backend:  snap.Config.Backend,
			Broker:   snap.Config.Broker,
			Format:   snap.Config.Format,
			HTTPAddr: snap.Config.HTTPAddr,
		},
	}
	if snap.Config.RedisAddr != "" {
		inner.Redis = &LinkStatus{Connected: snap.RedisConnected, Addr: snap.Config.RedisAddr}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

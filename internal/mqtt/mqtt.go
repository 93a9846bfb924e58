// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sweeney/button-sensor/internal/events"
)

// DefaultTopicPrefix is the topic root when none is configured.
const DefaultTopicPrefix = "home/buttons"

// Payload encodings.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// EventsTopic is the topic for button events under prefix.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// SystemTopic is the topic for system lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	Name         string `json:"name"`
	Index        int    `json:"index"`
	Pin          int    `json:"pin"`
	DurationMs   uint32 `json:"duration_ms"`
	Latched      bool   `json:"latched"`
	LatchChanged bool   `json:"latch_changed,omitempty"`
}

func buildPayload(event events.Event) Payload {
	return Payload{
		Button: ButtonPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Event:        string(event.Type),
			Name:         event.Button,
			Index:        event.Index,
			Pin:          event.Pin,
			DurationMs:   event.DurationMs,
			Latched:      event.Latched,
			LatchChanged: event.LatchChanged,
		},
	}
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(event events.Event) ([]byte, error) {
	return json.Marshal(buildPayload(event))
}

// EncodePayload creates the payload for a button event in the given format.
// An empty format means JSON.
func EncodePayload(format string, event events.Event) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return FormatPayload(event)
	case FormatCBOR:
		return cbor.Marshal(buildPayload(event))
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

func buildSystemPayload(event events.SystemEvent) SystemPayload {
	return SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event events.SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(buildSystemPayload(event))
}

// EncodeSystemPayload creates the payload for a system event in the given
// format. RawPayload is always passed through unchanged.
func EncodeSystemPayload(format string, event events.SystemEvent) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return FormatSystemPayload(event)
	case FormatCBOR:
		if event.RawPayload != nil {
			return event.RawPayload, nil
		}
		return cbor.Marshal(buildSystemPayload(event))
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

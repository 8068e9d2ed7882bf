package msgs

import (
	"bytes"
	"encoding/json"
	"time"
)

// Envelope wraps every bus payload with a logical timestamp so consumers
// can reject stale state updates after broker redelivery. The message body
// is always a string; structured payloads are JSON text inside it.
type Envelope struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// NewEnvelope wraps a message taking the timestamp from at.
func NewEnvelope(message string, at time.Time) Envelope {
	return Envelope{Message: message, Timestamp: at.UnixMilli()}
}

// Time returns the sender timestamp. ok is false when the sender did not
// attach one.
func (e Envelope) Time() (t time.Time, ok bool) {
	if e.Timestamp == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(e.Timestamp), true
}

// Encode marshals the envelope to its wire form.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes an envelope payload. Payloads that are not an
// envelope pass through as an untimestamped message: a bare JSON string
// is unquoted, anything else is taken verbatim. This keeps hand-rolled
// clients (mosquitto_pub with a raw value) usable against the daemon.
func ParseEnvelope(data []byte) Envelope {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe struct {
			Message   json.RawMessage `json:"message"`
			Timestamp int64           `json:"timestamp"`
		}
		if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Message != nil {
			msg := string(probe.Message)
			var s string
			if json.Unmarshal(probe.Message, &s) == nil {
				msg = s
			}
			return Envelope{Message: msg, Timestamp: probe.Timestamp}
		}
		return Envelope{Message: string(trimmed)}
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return Envelope{Message: s}
	}
	return Envelope{Message: string(trimmed)}
}

package msgs

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Temperatures is the telemetry payload for temperatures_updated.
// Readings are null when the board answered with a short frame.
type Temperatures struct {
	T1 *float64 `json:"t1"`
	T2 *float64 `json:"t2"`
	T3 *float64 `json:"t3"`
}

// FeedbackSummary is the telemetry payload for feedback_updated.
type FeedbackSummary struct {
	ActiveChannels int `json:"active_channels"`
}

// BoardInfo is the telemetry payload for board_info.
type BoardInfo struct {
	BoardID int `json:"board_id"`
}

// TemperatureSetpoints is the request payload for set_temperatures.
// Absent fields leave the current setpoint untouched.
type TemperatureSetpoints struct {
	T1 *int `json:"t1,omitempty"`
	T2 *int `json:"t2,omitempty"`
	T3 *int `json:"t3,omitempty"`
}

// ParseTemperatureSetpoints decodes a set_temperatures message body.
func ParseTemperatureSetpoints(message string) (TemperatureSetpoints, error) {
	var sp TemperatureSetpoints
	if err := json.Unmarshal([]byte(message), &sp); err != nil {
		return TemperatureSetpoints{}, fmt.Errorf("bad setpoints payload: %w", err)
	}
	return sp, nil
}

// Settings is the request payload for change_settings. All fields are
// optional; only the ones present are applied to the preferences store.
type Settings struct {
	BaudRate        *int    `json:"baud_rate,omitempty"`
	SerialTimeoutMS *int    `json:"serial_timeout_ms,omitempty"`
	ReadTimeoutMS   *int    `json:"read_timeout_ms,omitempty"`
	PortHint        *string `json:"port_hint,omitempty"`
	FeedbackEnabled *bool   `json:"feedback_enabled,omitempty"`
	Temperature1    *int    `json:"temperature_1,omitempty"`
	Temperature2    *int    `json:"temperature_2,omitempty"`
	Temperature3    *int    `json:"temperature_3,omitempty"`
}

// ParseSettings decodes a change_settings message body.
func ParseSettings(message string) (Settings, error) {
	var s Settings
	if err := json.Unmarshal([]byte(message), &s); err != nil {
		return Settings{}, fmt.Errorf("bad settings payload: %w", err)
	}
	return s, nil
}

// Fields lists the names of the fields present, for logging.
func (s Settings) Fields() []string {
	var names []string
	if s.BaudRate != nil {
		names = append(names, "baud_rate")
	}
	if s.SerialTimeoutMS != nil {
		names = append(names, "serial_timeout_ms")
	}
	if s.ReadTimeoutMS != nil {
		names = append(names, "read_timeout_ms")
	}
	if s.PortHint != nil {
		names = append(names, "port_hint")
	}
	if s.FeedbackEnabled != nil {
		names = append(names, "feedback_enabled")
	}
	if s.Temperature1 != nil {
		names = append(names, "temperature_1")
	}
	if s.Temperature2 != nil {
		names = append(names, "temperature_2")
	}
	if s.Temperature3 != nil {
		names = append(names, "temperature_3")
	}
	return names
}

// ParseElectrodeStates decodes an electrodes_state_change message body,
// a JSON object keyed by channel number: {"0": true, "5": false}.
func ParseElectrodeStates(message string) (map[int]bool, error) {
	var raw map[string]bool
	if err := json.Unmarshal([]byte(message), &raw); err != nil {
		return nil, fmt.Errorf("bad electrode payload: %w", err)
	}
	states := make(map[int]bool, len(raw))
	for key, on := range raw {
		ch, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("bad channel key %q", key)
		}
		states[ch] = on
	}
	return states, nil
}

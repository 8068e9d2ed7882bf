// Package opendrop implements the controller for OpenDrop
// digital-microfluidics boards: a command router fed from the message
// bus, a connection supervisor owning the serial link lifecycle, and a
// telemetry publisher pushing board state back onto the bus.
package opendrop

import (
	"fmt"

	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
)

// ConnectionState is the device link lifecycle state. It is owned by
// the Supervisor; everything else only observes it.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

var stateNames = [...]string{"disconnected", "connecting", "connected"}

func (s ConnectionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Bus is the outbound half of the message bus.
type Bus interface {
	Pub(topic string, payload []byte)
}

// BusFunc adapts a function to Bus.
type BusFunc func(topic string, payload []byte)

// Pub implements Bus.
func (f BusFunc) Pub(topic string, payload []byte) {
	f(topic, payload)
}

// ElectrodeController handles actuation requests.
type ElectrodeController interface {
	SetElectrodes(states map[int]bool) error
}

// SettingsController handles configuration requests.
type SettingsController interface {
	SetRealtimeMode(on bool) error
	SetFeedback(on bool) error
	SetTemperatures(sp msgs.TemperatureSetpoints) error
	ChangeSettings(s msgs.Settings) error
}

// MonitorController handles connection lifecycle requests.
type MonitorController interface {
	StartMonitoring()
	RetryConnection()
}

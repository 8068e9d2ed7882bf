package link

import (
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identity of the controller board (Adafruit Feather M0).
const (
	BoardVID = "239A"
	BoardPID = "800B"
)

// listPorts is swappable for tests.
var listPorts = enumerator.GetDetailedPortsList

// Discover resolves the serial port to try. A non-empty hint wins: an
// exact name passes through untouched, a glob ("/dev/ttyACM*") matches
// against the ports present. With no hint the first port carrying the
// board's VID:PID is picked. An empty name with a nil error means no
// device is present, which is a normal state while unplugged.
func Discover(hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if !strings.Contains(hint, "*") {
			return hint, nil
		}
		prefix := strings.ReplaceAll(hint, "*", "")
		ports, err := listPorts()
		if err != nil {
			return "", err
		}
		for _, p := range ports {
			if strings.HasPrefix(p.Name, prefix) || strings.Contains(p.Name, prefix) {
				return p.Name, nil
			}
		}
		return "", nil
	}

	ports, err := listPorts()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, BoardVID) && strings.EqualFold(p.PID, BoardPID) {
			return p.Name, nil
		}
	}
	return "", nil
}

// ListPorts enumerates the serial ports present, with USB identity
// details for diagnostics.
func ListPorts() ([]*enumerator.PortDetails, error) {
	return listPorts()
}

package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func stubPorts(t *testing.T, ports []*enumerator.PortDetails, err error) {
	t.Helper()
	old := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return ports, err
	}
	t.Cleanup(func() { listPorts = old })
}

func TestDiscoverExactHint(t *testing.T) {
	stubPorts(t, nil, errors.New("must not enumerate"))
	name, err := Discover(" /dev/ttyACM0 ")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", name)
}

func TestDiscoverGlobHint(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM2"},
	}, nil)

	name, err := Discover("/dev/ttyACM*")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM2", name)

	name, err = Discover("/dev/ttyUSB*")
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestDiscoverByUSBIdentity(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "239a", PID: "800b"},
	}, nil)

	name, err := Discover("")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM1", name)
}

func TestDiscoverAbsent(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "7523"},
	}, nil)

	name, err := Discover("")
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestDiscoverEnumerateError(t *testing.T) {
	cause := errors.New("enumeration failed")
	stubPorts(t, nil, cause)

	_, err := Discover("")
	require.ErrorIs(t, err, cause)

	_, err = Discover("/dev/ttyACM*")
	require.ErrorIs(t, err, cause)
}

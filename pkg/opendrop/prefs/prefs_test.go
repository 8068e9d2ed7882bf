package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), s.Get())
}

func TestUpdateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	s, err := Open(path)
	require.NoError(t, err)

	saved, err := s.Update(func(p *Preferences) {
		p.PortHint = "/dev/ttyACM3"
		p.FeedbackEnabled = true
		p.Temperature2 = 40
	})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM3", saved.PortHint)
	require.True(t, saved.FeedbackEnabled)
	require.Equal(t, 40, saved.Temperature2)

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, saved, reopened.Get())
}

func TestOpenPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("port_hint: COM7\nbaud_rate: 57600\n"), 0644))

	s, err := Open(path)
	require.NoError(t, err)
	p := s.Get()
	require.Equal(t, "COM7", p.PortHint)
	require.Equal(t, 57600, p.BaudRate)
	require.Equal(t, DefaultSerialTimeoutMS, p.SerialTimeoutMS)
	require.Equal(t, DefaultReadTimeoutMS, p.ReadTimeoutMS)
	require.Equal(t, 25, p.Temperature1)
}

func TestOpenClampsTemperatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("temperature_1: 5\ntemperature_2: 200\ntemperature_3: 60\n"), 0644))

	s, err := Open(path)
	require.NoError(t, err)
	p := s.Get()
	require.Equal(t, 20, p.Temperature1)
	require.Equal(t, 120, p.Temperature2)
	require.Equal(t, 60, p.Temperature3)
}

func TestUpdateClampsAndRepairs(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.yml"))
	require.NoError(t, err)

	saved, err := s.Update(func(p *Preferences) {
		p.Temperature1 = -10
		p.BaudRate = 0
	})
	require.NoError(t, err)
	require.Equal(t, 20, saved.Temperature1)
	require.Equal(t, DefaultBaudRate, saved.BaudRate)
}

func TestOpenBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("baud_rate: [oops\n"), 0644))

	_, err := Open(path)
	require.Error(t, err)
}

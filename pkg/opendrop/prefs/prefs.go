// Package prefs persists controller settings between runs.
//
// Settings live in a single YAML file. A missing file is not an
// error: the store starts from defaults and creates the file on the
// first update.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
)

// Serial defaults match the device's factory firmware configuration.
const (
	DefaultBaudRate        = 115200
	DefaultSerialTimeoutMS = 50
	DefaultReadTimeoutMS   = 500
)

// Preferences is the on-disk settings document.
type Preferences struct {
	BaudRate        int    `yaml:"baud_rate"`
	SerialTimeoutMS int    `yaml:"serial_timeout_ms"`
	ReadTimeoutMS   int    `yaml:"read_timeout_ms"`
	PortHint        string `yaml:"port_hint"`
	FeedbackEnabled bool   `yaml:"feedback_enabled"`
	Temperature1    int    `yaml:"temperature_1"`
	Temperature2    int    `yaml:"temperature_2"`
	Temperature3    int    `yaml:"temperature_3"`
}

// Defaults returns the settings used before any file exists.
func Defaults() Preferences {
	return Preferences{
		BaudRate:        DefaultBaudRate,
		SerialTimeoutMS: DefaultSerialTimeoutMS,
		ReadTimeoutMS:   DefaultReadTimeoutMS,
		Temperature1:    frame.DefaultTemperatureC,
		Temperature2:    frame.DefaultTemperatureC,
		Temperature3:    frame.DefaultTemperatureC,
	}
}

func (p *Preferences) normalize() {
	if p.BaudRate <= 0 {
		p.BaudRate = DefaultBaudRate
	}
	if p.SerialTimeoutMS <= 0 {
		p.SerialTimeoutMS = DefaultSerialTimeoutMS
	}
	if p.ReadTimeoutMS <= 0 {
		p.ReadTimeoutMS = DefaultReadTimeoutMS
	}
	p.Temperature1 = frame.ClampTemperature(p.Temperature1)
	p.Temperature2 = frame.ClampTemperature(p.Temperature2)
	p.Temperature3 = frame.ClampTemperature(p.Temperature3)
}

// Store reads and writes a preferences file.
type Store struct {
	path string

	lock    sync.Mutex
	current Preferences
}

// Open loads the preferences at path, falling back to defaults when
// the file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, current: Defaults()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("prefs: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.current); err != nil {
		return nil, fmt.Errorf("prefs: parse %s: %w", path, err)
	}
	s.current.normalize()
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current settings.
func (s *Store) Get() Preferences {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

// Update applies fn to a copy of the current settings and persists
// the result. The saved settings are returned.
func (s *Store) Update(fn func(*Preferences)) (Preferences, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	next := s.current
	fn(&next)
	next.normalize()
	if err := s.write(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// write persists via a temp file and rename so a crash never leaves
// a half-written document behind.
func (s *Store) write(p Preferences) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("prefs: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yml")
	if err != nil {
		return fmt.Errorf("prefs: temp file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		if werr == nil {
			werr = cerr
		}
		return fmt.Errorf("prefs: write %s: %w", s.path, werr)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("prefs: save %s: %w", s.path, err)
	}
	return nil
}

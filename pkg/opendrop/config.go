package opendrop

import (
	"flag"
	"os"

	"github.com/denisbrodbeck/machineid"
)

// Config defines the configurations for the controller daemon.
type Config struct {
	// BrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	BrokerURL string
	// PrefsPath locates the preferences file.
	PrefsPath string
	// AutoStart begins device monitoring at launch without waiting
	// for a start_device_monitoring request.
	AutoStart bool
}

var defaultConfig = Config{
	BrokerURL: "mqtt://localhost:1883",
	PrefsPath: "opendrop.yml",
}

func init() {
	if val := os.Getenv("OPENDROP_MQTT_URL"); val != "" {
		defaultConfig.BrokerURL = val
	}
	if val := os.Getenv("OPENDROP_PREFS"); val != "" {
		defaultConfig.PrefsPath = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BrokerURL, "mqtt", defaultConfig.BrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.PrefsPath, "prefs", defaultConfig.PrefsPath, "Preferences file path")
	flag.BoolVar(&defaultConfig.AutoStart, "autostart", defaultConfig.AutoStart, "Start device monitoring at launch")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		panic(err)
	}
	return id
}

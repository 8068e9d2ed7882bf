package opendrop

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
)

// alwaysAllowed lists the request verbs honored while no device is
// connected. Everything else needs a live link and is denied with a
// warning instead of being queued.
var alwaysAllowed = map[string]bool{
	msgs.VerbChangeSettings:        true,
	msgs.VerbStartDeviceMonitoring: true,
	msgs.VerbRetryConnection:       true,
}

// Router dispatches request topics to the controller interfaces. Each
// topic keeps the timestamp of the last applied message; messages not
// strictly newer are dropped so broker redelivery cannot apply an old
// state change over a newer one.
type Router struct {
	electrodes ElectrodeController
	settings   SettingsController
	monitor    MonitorController
	state      func() ConnectionState

	lock sync.Mutex
	seen map[string]time.Time
}

// NewRouter creates a Router dispatching to the given handlers. state
// gates device-dependent requests.
func NewRouter(e ElectrodeController, s SettingsController, m MonitorController, state func() ConnectionState) *Router {
	return &Router{
		electrodes: e,
		settings:   s,
		monitor:    m,
		state:      state,
		seen:       make(map[string]time.Time),
	}
}

// Dispatch handles one bus message. It matches the mqtt queue handler
// signature so it can subscribe directly.
func (r *Router) Dispatch(topic string, payload []byte) {
	device, kind, verb, ok := msgs.SplitTopic(topic)
	if !ok || kind != "requests" {
		return
	}
	if device != msgs.DevicePrefix && device != msgs.CompatPrefix {
		return
	}
	if r.state() != StateConnected && !alwaysAllowed[verb] {
		glog.Warningf("request %q denied: device disconnected", verb)
		return
	}
	env := msgs.ParseEnvelope(payload)
	if !r.fresh(topic, env) {
		glog.V(1).Infof("stale request on %q dropped", topic)
		return
	}
	if err := r.invoke(verb, env.Message); err != nil {
		glog.Warningf("request %q failed: %v", verb, err)
	}
}

// fresh applies the staleness gate. Untimestamped messages bypass the
// gate and do not advance the table.
func (r *Router) fresh(topic string, env msgs.Envelope) bool {
	ts, ok := env.Time()
	if !ok {
		return true
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if last, seen := r.seen[topic]; seen && !ts.After(last) {
		return false
	}
	r.seen[topic] = ts
	return true
}

func (r *Router) invoke(verb, message string) error {
	switch verb {
	case msgs.VerbElectrodesStateChange:
		states, err := msgs.ParseElectrodeStates(message)
		if err != nil {
			return err
		}
		return r.electrodes.SetElectrodes(states)
	case msgs.VerbSetRealtimeMode:
		on, err := parseFlag(message)
		if err != nil {
			return err
		}
		return r.settings.SetRealtimeMode(on)
	case msgs.VerbSetFeedback:
		on, err := parseFlag(message)
		if err != nil {
			return err
		}
		return r.settings.SetFeedback(on)
	case msgs.VerbSetTemperatures:
		sp, err := msgs.ParseTemperatureSetpoints(message)
		if err != nil {
			return err
		}
		return r.settings.SetTemperatures(sp)
	case msgs.VerbSetTemperature1:
		return r.setOneTemperature(message, 1)
	case msgs.VerbSetTemperature2:
		return r.setOneTemperature(message, 2)
	case msgs.VerbSetTemperature3:
		return r.setOneTemperature(message, 3)
	case msgs.VerbChangeSettings:
		s, err := msgs.ParseSettings(message)
		if err != nil {
			return err
		}
		return r.settings.ChangeSettings(s)
	case msgs.VerbStartDeviceMonitoring:
		r.monitor.StartMonitoring()
		return nil
	case msgs.VerbRetryConnection:
		r.monitor.RetryConnection()
		return nil
	}
	glog.V(1).Infof("unhandled request verb %q", verb)
	return nil
}

// setOneTemperature handles set_temperature_N, whose payload is a bare
// number applied to a single channel.
func (r *Router) setOneTemperature(message string, n int) error {
	v, err := strconv.Atoi(strings.TrimSpace(message))
	if err != nil {
		return fmt.Errorf("bad temperature %q", message)
	}
	var sp msgs.TemperatureSetpoints
	switch n {
	case 1:
		sp.T1 = &v
	case 2:
		sp.T2 = &v
	case 3:
		sp.T3 = &v
	}
	return r.settings.SetTemperatures(sp)
}

// parseFlag accepts the bool spellings front-ends send, including
// Python-style "True"/"False".
func parseFlag(message string) (bool, error) {
	on, err := strconv.ParseBool(strings.TrimSpace(message))
	if err != nil {
		return false, fmt.Errorf("bad flag %q", message)
	}
	return on, nil
}

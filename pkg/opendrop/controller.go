package opendrop

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
	"github.com/droplab/opendrop.go/pkg/opendrop/link"
	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
	"github.com/droplab/opendrop.go/pkg/opendrop/prefs"
)

// Controller holds the device state pushed on every transaction and
// implements the request handler interfaces the Router dispatches to.
// Control parameters load from the preferences store at construction
// and are written back by settings requests.
type Controller struct {
	store *prefs.Store
	sig   signals
	sup   *Supervisor

	lock       sync.Mutex
	link       *link.Link
	electrodes frame.ElectrodeState
	feedback   bool
	temps      [3]int
	realtime   bool
	boardID    int
}

// NewController creates a Controller publishing signals on bus.
func NewController(store *prefs.Store, bus Bus) *Controller {
	c := &Controller{
		store:   store,
		sig:     signals{bus: bus},
		boardID: -1,
	}
	p := store.Get()
	c.feedback = p.FeedbackEnabled
	c.temps = [3]int{p.Temperature1, p.Temperature2, p.Temperature3}
	c.sup = newSupervisor(c)
	return c
}

// Supervisor returns the connection supervisor owning the link
// lifecycle. Run it under the process runner.
func (c *Controller) Supervisor() *Supervisor {
	return c.sup
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	return c.sup.State()
}

// BoardID returns the board id of the connected device, -1 before the
// first telemetry frame carrying one.
func (c *Controller) BoardID() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.boardID
}

// RealtimeMode reports whether routine electrode pushes are enabled.
func (c *Controller) RealtimeMode() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.realtime
}

// Link returns the current device link, nil while disconnected.
func (c *Controller) Link() *link.Link {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.link
}

func (c *Controller) setLink(l *link.Link) {
	c.lock.Lock()
	c.link = l
	c.lock.Unlock()
}

func (c *Controller) teardownLink() {
	c.lock.Lock()
	l := c.link
	c.link = nil
	c.lock.Unlock()
	if l != nil {
		l.Close()
	}
}

// SetElectrodes implements ElectrodeController. The payload replaces
// the whole actuation state; channels not named turn off, out-of-range
// channels are ignored.
func (c *Controller) SetElectrodes(states map[int]bool) error {
	c.lock.Lock()
	c.electrodes.ClearAll()
	for ch, on := range states {
		c.electrodes.Set(ch, on)
	}
	active := c.electrodes.ActiveCount()
	c.lock.Unlock()
	t, err := c.pushReporting(false)
	if err != nil {
		return err
	}
	status := "skipped"
	if t != nil {
		status = "ok"
	}
	glog.Infof("electrode update applied: %d/%d active (telemetry=%s)",
		active, frame.NumChannels, status)
	return nil
}

// SetRealtimeMode implements SettingsController. Turning realtime off
// clears the actuation state and pushes the cleared frame so no
// electrode stays energized while streaming is paused.
func (c *Controller) SetRealtimeMode(on bool) error {
	c.lock.Lock()
	c.realtime = on
	if !on {
		c.electrodes.ClearAll()
	}
	c.lock.Unlock()
	c.sig.realtimeMode(on)
	if _, err := c.pushReporting(true); err != nil {
		return err
	}
	glog.Infof("realtime mode set to %v", on)
	return nil
}

// SetFeedback implements SettingsController.
func (c *Controller) SetFeedback(on bool) error {
	c.lock.Lock()
	c.feedback = on
	c.lock.Unlock()
	if _, err := c.store.Update(func(p *prefs.Preferences) {
		p.FeedbackEnabled = on
	}); err != nil {
		glog.Warningf("persist feedback: %v", err)
	}
	if _, err := c.pushReporting(true); err != nil {
		return err
	}
	glog.Infof("feedback set to %v", on)
	return nil
}

// SetTemperatures implements SettingsController. Absent fields keep
// their current setpoint; values are clamped to the firmware range.
func (c *Controller) SetTemperatures(sp msgs.TemperatureSetpoints) error {
	c.lock.Lock()
	if sp.T1 != nil {
		c.temps[0] = frame.ClampTemperature(*sp.T1)
	}
	if sp.T2 != nil {
		c.temps[1] = frame.ClampTemperature(*sp.T2)
	}
	if sp.T3 != nil {
		c.temps[2] = frame.ClampTemperature(*sp.T3)
	}
	temps := c.temps
	c.lock.Unlock()
	if _, err := c.store.Update(func(p *prefs.Preferences) {
		p.Temperature1 = temps[0]
		p.Temperature2 = temps[1]
		p.Temperature3 = temps[2]
	}); err != nil {
		glog.Warningf("persist temperatures: %v", err)
	}
	if _, err := c.pushReporting(true); err != nil {
		return err
	}
	glog.Infof("temperatures updated: %v", temps)
	return nil
}

// ChangeSettings implements SettingsController. The payload is a
// partial settings document applied to the preferences store; control
// parameters reload from the stored result so clamping and repair
// happen in one place.
func (c *Controller) ChangeSettings(s msgs.Settings) error {
	p, err := c.store.Update(func(p *prefs.Preferences) {
		applySettings(p, s)
	})
	if err != nil {
		return err
	}
	c.lock.Lock()
	c.feedback = p.FeedbackEnabled
	c.temps = [3]int{p.Temperature1, p.Temperature2, p.Temperature3}
	c.lock.Unlock()
	if _, err := c.pushReporting(true); err != nil {
		return err
	}
	glog.Infof("settings changed: %v", s.Fields())
	return nil
}

func applySettings(p *prefs.Preferences, s msgs.Settings) {
	if s.BaudRate != nil {
		p.BaudRate = *s.BaudRate
	}
	if s.SerialTimeoutMS != nil {
		p.SerialTimeoutMS = *s.SerialTimeoutMS
	}
	if s.ReadTimeoutMS != nil {
		p.ReadTimeoutMS = *s.ReadTimeoutMS
	}
	if s.PortHint != nil {
		p.PortHint = *s.PortHint
	}
	if s.FeedbackEnabled != nil {
		p.FeedbackEnabled = *s.FeedbackEnabled
	}
	if s.Temperature1 != nil {
		p.Temperature1 = *s.Temperature1
	}
	if s.Temperature2 != nil {
		p.Temperature2 = *s.Temperature2
	}
	if s.Temperature3 != nil {
		p.Temperature3 = *s.Temperature3
	}
}

// StartMonitoring implements MonitorController.
func (c *Controller) StartMonitoring() {
	c.sup.StartMonitoring()
}

// RetryConnection implements MonitorController.
func (c *Controller) RetryConnection() {
	c.sup.RetryConnection()
}

// push performs one transaction with the current device state. It
// returns (nil, nil) when there is nothing to do: no link, a routine
// push while realtime mode is off, or a truncated response. Telemetry
// signals go out on every decodable response.
func (c *Controller) push(force bool) (*frame.Telemetry, error) {
	readTimeout := time.Duration(c.store.Get().ReadTimeoutMS) * time.Millisecond
	c.lock.Lock()
	l := c.link
	if l == nil || (!force && !c.realtime) {
		c.lock.Unlock()
		return nil, nil
	}
	opts := link.TransactOptions{
		Electrodes:      c.electrodes,
		FeedbackEnabled: c.feedback,
		Temperatures:    c.temps,
		ReadTimeout:     readTimeout,
		Force:           force,
	}
	c.lock.Unlock()
	t, err := l.Transact(opts)
	if err != nil {
		return nil, err
	}
	if !t.Connected {
		glog.Warningf("telemetry response truncated (%d bytes)", t.ResponseLen)
		return nil, nil
	}
	if t.HasBoardID {
		c.lock.Lock()
		c.boardID = t.BoardID
		c.lock.Unlock()
	}
	c.sig.telemetry(t)
	return t, nil
}

// pushReporting is push with transport faults routed to the
// supervisor, which performs the disconnect transition.
func (c *Controller) pushReporting(force bool) (*frame.Telemetry, error) {
	t, err := c.push(force)
	if err != nil && link.IsDisconnect(err) {
		glog.Warningf("device fault during push: %v", err)
		c.sup.ReportFault(err)
	}
	return t, err
}

package opendrop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/droplab/opendrop.go/pkg/opendrop/link"
	"github.com/droplab/opendrop.go/pkg/opendrop/prefs"
)

// discoverInterval is the period of the monitor tick. Every tick
// either probes a live link or scans for a board to connect to.
const discoverInterval = 2 * time.Second

// Supervisor owns the connection state machine and the link
// lifecycle. It runs as a Runnable whose loop ticks on a fixed
// interval, with a nudge channel for requests that should not wait
// out the interval. It does nothing until monitoring is requested.
type Supervisor struct {
	ctl *Controller

	discover func(hint string) (string, error)
	open     func(name string, opts link.Options) (*link.Link, error)
	interval time.Duration

	lock        sync.Mutex
	state       ConnectionState
	monitoring  bool
	paused      bool
	errorLogged bool

	nudge chan struct{}
}

func newSupervisor(ctl *Controller) *Supervisor {
	return &Supervisor{
		ctl:      ctl,
		discover: link.Discover,
		open:     link.Open,
		interval: discoverInterval,
		nudge:    make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Run implements Runnable.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-ticker.C:
		case <-s.nudge:
		}
		s.tick()
	}
}

// StartMonitoring begins or resumes monitoring. Starting while
// already running is a no-op; while connected it republishes the
// connected signal so late subscribers catch up.
func (s *Supervisor) StartMonitoring() {
	s.lock.Lock()
	if s.state == StateConnected {
		s.lock.Unlock()
		s.ctl.sig.connected()
		return
	}
	if s.monitoring && !s.paused {
		s.lock.Unlock()
		glog.Info("monitoring already running")
		return
	}
	resumed := s.monitoring
	s.monitoring = true
	s.paused = false
	s.lock.Unlock()
	if resumed {
		glog.Info("monitoring resumed")
	} else {
		glog.Info("monitoring started")
	}
	s.kick()
}

// RetryConnection asks for an immediate connect attempt. Ignored when
// already connected.
func (s *Supervisor) RetryConnection() {
	s.lock.Lock()
	if s.state == StateConnected {
		s.lock.Unlock()
		glog.Info("retry ignored: already connected")
		return
	}
	started := s.monitoring
	s.monitoring = true
	s.paused = false
	s.lock.Unlock()
	if started {
		glog.Info("retrying connection")
	} else {
		glog.Info("monitoring started")
	}
	s.kick()
}

// Pause suspends discovery without tearing down the loop. Monitoring
// resumes on StartMonitoring or RetryConnection, and automatically
// after a disconnect.
func (s *Supervisor) Pause() {
	s.lock.Lock()
	s.paused = true
	s.lock.Unlock()
}

// ReportFault tears down a connected link after a transport fault on
// a push path. Exactly one disconnected signal goes out per link.
func (s *Supervisor) ReportFault(err error) {
	s.transitionDown(err.Error())
}

// Announce republishes the current state for a freshly (re)connected
// bus session.
func (s *Supervisor) Announce() {
	if s.State() == StateConnected {
		s.ctl.sig.connected()
	} else {
		s.ctl.sig.disconnected()
	}
}

func (s *Supervisor) kick() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

func (s *Supervisor) setState(state ConnectionState) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

// tick performs one monitor cycle: a liveness probe while connected,
// a discovery scan plus connect attempt otherwise.
func (s *Supervisor) tick() {
	s.lock.Lock()
	enabled := s.monitoring && !s.paused
	state := s.state
	s.lock.Unlock()
	if !enabled {
		return
	}
	if state == StateConnected {
		s.checkCycle()
		return
	}
	s.connectCycle()
}

func (s *Supervisor) checkCycle() {
	if l := s.ctl.Link(); l != nil && l.Check() {
		return
	}
	s.transitionDown("liveness check failed")
}

func (s *Supervisor) connectCycle() {
	p := s.ctl.store.Get()
	name, err := s.discover(p.PortHint)
	if err != nil {
		s.setState(StateDisconnected)
		s.noteFailure("port scan", err)
		return
	}
	if name == "" {
		// no matching board is the normal state while unplugged
		s.setState(StateDisconnected)
		return
	}
	s.setState(StateConnecting)
	s.attempt(name, p)
}

// attempt opens the candidate port and validates it with a forced
// state push. The board must answer the protocol before the state
// machine moves to Connected.
func (s *Supervisor) attempt(name string, p prefs.Preferences) bool {
	l, err := s.open(name, link.Options{
		BaudRate:      p.BaudRate,
		SerialTimeout: time.Duration(p.SerialTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		s.noteFailure("open "+name, err)
		return false
	}
	s.ctl.setLink(l)
	t, err := s.ctl.push(true)
	if err != nil || t == nil || !t.Connected {
		s.ctl.teardownLink()
		if err == nil {
			err = fmt.Errorf("no valid response on %s", name)
		}
		s.noteFailure("handshake", err)
		return false
	}
	s.setState(StateConnected)
	s.lock.Lock()
	s.errorLogged = false
	s.lock.Unlock()
	glog.Infof("connected to board on %s", name)
	s.ctl.sig.connected()
	return true
}

// noteFailure logs the first failed attempt after a success and
// suppresses the rest, so a silent board does not flood the log at
// every tick.
func (s *Supervisor) noteFailure(op string, err error) {
	s.lock.Lock()
	logged := s.errorLogged
	s.errorLogged = true
	s.lock.Unlock()
	if !logged {
		glog.Warningf("connect attempt failed (%s): %v", op, err)
	}
}

// transitionDown moves Connected to Disconnected exactly once,
// closing the link and publishing the disconnected signal. A paused
// monitor resumes so recovery starts on the next tick.
func (s *Supervisor) transitionDown(reason string) {
	s.lock.Lock()
	if s.state != StateConnected {
		s.lock.Unlock()
		return
	}
	s.state = StateDisconnected
	s.paused = false
	s.lock.Unlock()
	glog.Warningf("device disconnected: %s", reason)
	s.ctl.teardownLink()
	s.ctl.sig.disconnected()
}

func (s *Supervisor) shutdown() {
	s.lock.Lock()
	s.monitoring = false
	wasConnected := s.state == StateConnected
	s.state = StateDisconnected
	s.lock.Unlock()
	s.ctl.teardownLink()
	if wasConnected {
		s.ctl.sig.disconnected()
	}
}

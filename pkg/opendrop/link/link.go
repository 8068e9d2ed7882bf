package link

import (
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
)

// Timing for the transaction path.
const (
	// writeDebounce is the minimum interval between wire writes.
	// Calls inside the window replay the cached telemetry instead of
	// touching the wire, bounding traffic under command bursts.
	writeDebounce = 50 * time.Millisecond
	// readPoll is the sleep between read attempts while a response
	// accumulates.
	readPoll = time.Millisecond
)

// Defaults applied when Options fields are zero.
const (
	DefaultBaudRate      = 115200
	DefaultSerialTimeout = 50 * time.Millisecond
	DefaultReadTimeout   = 500 * time.Millisecond
)

// Port is the transport under a Link. Ports from go.bug.st/serial
// satisfy it directly.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	Close() error
}

// Options configure an open link.
type Options struct {
	// BaudRate for the port.
	BaudRate int
	// SerialTimeout is the per-read timeout on the port.
	SerialTimeout time.Duration
}

// Link owns one open serial connection to the board and serializes all
// wire access behind a mutex. The hardware is half-duplex
// request/response; concurrent writes would corrupt the stream.
type Link struct {
	name string

	mu         sync.Mutex
	port       Port
	lastWrite  time.Time
	lastResult *frame.Telemetry
}

// Open opens the named serial port and wraps it in a Link.
func Open(name string, opts Options) (*Link, error) {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.SerialTimeout <= 0 {
		opts.SerialTimeout = DefaultSerialTimeout
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: opts.BaudRate})
	if err != nil {
		return nil, &FaultError{Op: "open " + name, Err: err}
	}
	if err := port.SetReadTimeout(opts.SerialTimeout); err != nil {
		port.Close()
		return nil, &FaultError{Op: "configure " + name, Err: err}
	}
	return New(name, port), nil
}

// New wraps an already-open port. Useful for transports other than a
// local serial device, and for tests.
func New(name string, port Port) *Link {
	return &Link{name: name, port: port}
}

// Name returns the OS port name.
func (l *Link) Name() string {
	return l.name
}

// IsOpen reports whether the link still holds a port. No I/O is done;
// use Check to probe the device.
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Check probes the device with a minimal I/O so an unplugged board is
// noticed between transactions.
func (l *Link) Check() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return false
	}
	return l.port.ResetInputBuffer() == nil
}

// Close closes the port and drops the cached telemetry. Closing an
// already-closed link is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	l.lastResult = nil
	l.lastWrite = time.Time{}
	return err
}

// TransactOptions carry the state pushed by one transaction.
type TransactOptions struct {
	// Electrodes is the actuation snapshot to write.
	Electrodes frame.ElectrodeState
	// FeedbackEnabled and Temperatures fill the control frame.
	FeedbackEnabled bool
	Temperatures    [3]int
	// ReadTimeout bounds the wait for the telemetry response;
	// DefaultReadTimeout when zero.
	ReadTimeout time.Duration
	// Force bypasses the debounce window.
	Force bool
}

// Transact performs one exchange: clear the input buffer, write the
// electrode frame immediately followed by the control frame, then
// collect the telemetry response. A call landing inside the debounce
// window returns the cached telemetry of the previous exchange without
// touching the wire. Transport faults come back as *FaultError and are
// never retried here.
func (l *Link) Transact(o TransactOptions) (*frame.Telemetry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil, ErrNotConnected
	}

	now := time.Now()
	if !o.Force && l.lastResult != nil && now.Sub(l.lastWrite) < writeDebounce {
		return l.lastResult, nil
	}

	if err := l.port.ResetInputBuffer(); err != nil {
		return nil, &FaultError{Op: "reset input", Err: err}
	}
	electrodes := frame.EncodeElectrodes(&o.Electrodes)
	control := frame.EncodeControl(o.FeedbackEnabled, o.Temperatures)
	if _, err := l.port.Write(electrodes[:]); err != nil {
		return nil, &FaultError{Op: "write electrodes", Err: err}
	}
	if _, err := l.port.Write(control[:]); err != nil {
		return nil, &FaultError{Op: "write control", Err: err}
	}

	resp, err := l.readResponse(o.ReadTimeout)
	if err != nil {
		return nil, err
	}

	result := frame.DecodeTelemetry(resp)
	l.lastWrite = now
	l.lastResult = &result
	return &result, nil
}

// readResponse accumulates bytes until a full telemetry frame arrived
// or the timeout elapsed, whichever first. Partial responses are kept;
// the decoder tolerates a short tail. The short sleep between attempts
// avoids busy-spinning while staying responsive to just-in-time byte
// delivery.
func (l *Link) readResponse(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, frame.TelemetryFrameSize)
	chunk := make([]byte, frame.TelemetryFrameSize)
	for len(buf) < frame.TelemetryFrameSize && time.Now().Before(deadline) {
		n, err := l.port.Read(chunk[:frame.TelemetryFrameSize-len(buf)])
		if err != nil {
			return nil, &FaultError{Op: "read telemetry", Err: err}
		}
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		time.Sleep(readPoll)
	}
	return buf, nil
}

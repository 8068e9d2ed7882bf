package link

import (
	"errors"
	"fmt"
)

// ErrNotConnected indicates the link has no open port.
var ErrNotConnected = errors.New("not connected")

// FaultError wraps a transport-level failure of one link operation:
// an unplugged device, a broken pipe, a failed syscall. The link never
// retries a fault; the supervisor owns recovery.
type FaultError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *FaultError) Error() string {
	return fmt.Sprintf("link %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *FaultError) Unwrap() error {
	return e.Err
}

// IsDisconnect reports whether err signals a lost device.
func IsDisconnect(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

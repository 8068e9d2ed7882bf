package link

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
)

// fakePort scripts one telemetry response, replayed from the start
// after every input buffer reset.
type fakePort struct {
	response []byte
	offset   int

	writes   [][]byte
	resets   int
	closed   bool
	readErr  error
	writeErr error
	resetErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.offset >= len(p.response) {
		return 0, nil // read timeout
	}
	n := copy(b, p.response[p.offset:])
	p.offset += n
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) ResetInputBuffer() error {
	if p.resetErr != nil {
		return p.resetErr
	}
	p.resets++
	p.offset = 0
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func fullResponse() []byte {
	resp := make([]byte, frame.TelemetryFrameSize)
	resp[23] = 7
	return resp
}

func TestTransactWritesFrames(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)

	var states frame.ElectrodeState
	states.Set(0, true)
	states.Set(7, true)
	result, err := l.Transact(TransactOptions{
		Electrodes:      states,
		FeedbackEnabled: true,
		Temperatures:    [3]int{25, 30, 35},
	})
	require.NoError(t, err)
	require.True(t, result.Connected)
	require.True(t, result.HasBoardID)
	require.Equal(t, 7, result.BoardID)

	require.Equal(t, 1, port.resets)
	require.Len(t, port.writes, 2)
	electrodes := frame.EncodeElectrodes(&states)
	require.Equal(t, electrodes[:], port.writes[0])
	control := frame.EncodeControl(true, [3]int{25, 30, 35})
	require.Equal(t, control[:], port.writes[1])
}

func TestTransactDebounce(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)

	first, err := l.Transact(TransactOptions{})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		result, err := l.Transact(TransactOptions{})
		require.NoError(t, err)
		require.Equal(t, first, result)
	}
	// 5 rapid calls, exactly one wire exchange
	require.Len(t, port.writes, 2)
	require.Equal(t, 1, port.resets)
}

func TestTransactDebounceExpiry(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)

	_, err := l.Transact(TransactOptions{})
	require.NoError(t, err)
	time.Sleep(writeDebounce + 20*time.Millisecond)
	_, err = l.Transact(TransactOptions{})
	require.NoError(t, err)
	require.Len(t, port.writes, 4)
}

func TestTransactForceBypassesDebounce(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)

	_, err := l.Transact(TransactOptions{})
	require.NoError(t, err)
	_, err = l.Transact(TransactOptions{Force: true})
	require.NoError(t, err)
	require.Len(t, port.writes, 4)
	require.Equal(t, 2, port.resets)
}

func TestTransactShortResponse(t *testing.T) {
	port := &fakePort{response: make([]byte, 10)}
	l := New("fake", port)

	result, err := l.Transact(TransactOptions{ReadTimeout: 5 * time.Millisecond})
	require.NoError(t, err)
	require.False(t, result.Connected)
	require.False(t, result.HasTemperatures)
	require.Equal(t, 10, result.ResponseLen)
}

func TestTransactWriteFault(t *testing.T) {
	cause := errors.New("device gone")
	port := &fakePort{writeErr: cause}
	l := New("fake", port)

	_, err := l.Transact(TransactOptions{})
	require.Error(t, err)
	require.True(t, IsDisconnect(err))
	require.ErrorIs(t, err, cause)
	var fe *FaultError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "write electrodes", fe.Op)
}

func TestTransactReadFault(t *testing.T) {
	port := &fakePort{readErr: errors.New("io failure")}
	l := New("fake", port)

	_, err := l.Transact(TransactOptions{})
	require.True(t, IsDisconnect(err))
}

func TestTransactNotConnected(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)
	require.NoError(t, l.Close())
	require.True(t, port.closed)

	_, err := l.Transact(TransactOptions{})
	require.ErrorIs(t, err, ErrNotConnected)
	require.False(t, IsDisconnect(err))
}

func TestCheck(t *testing.T) {
	port := &fakePort{response: fullResponse()}
	l := New("fake", port)
	require.True(t, l.IsOpen())
	require.True(t, l.Check())

	port.resetErr = errors.New("unplugged")
	require.False(t, l.Check())

	port.resetErr = nil
	require.NoError(t, l.Close())
	require.False(t, l.IsOpen())
	require.False(t, l.Check())
}

package opendrop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
)

type handlerRecorder struct {
	electrodes []map[int]bool
	realtime   []bool
	feedback   []bool
	temps      []msgs.TemperatureSetpoints
	settings   []msgs.Settings
	starts     int
	retries    int
}

func (h *handlerRecorder) SetElectrodes(states map[int]bool) error {
	h.electrodes = append(h.electrodes, states)
	return nil
}

func (h *handlerRecorder) SetRealtimeMode(on bool) error {
	h.realtime = append(h.realtime, on)
	return nil
}

func (h *handlerRecorder) SetFeedback(on bool) error {
	h.feedback = append(h.feedback, on)
	return nil
}

func (h *handlerRecorder) SetTemperatures(sp msgs.TemperatureSetpoints) error {
	h.temps = append(h.temps, sp)
	return nil
}

func (h *handlerRecorder) ChangeSettings(s msgs.Settings) error {
	h.settings = append(h.settings, s)
	return nil
}

func (h *handlerRecorder) StartMonitoring() {
	h.starts++
}

func (h *handlerRecorder) RetryConnection() {
	h.retries++
}

func newTestRouter(state ConnectionState) (*Router, *handlerRecorder, *ConnectionState) {
	rec := &handlerRecorder{}
	st := state
	r := NewRouter(rec, rec, rec, func() ConnectionState { return st })
	return r, rec, &st
}

func payload(t *testing.T, message string, at time.Time) []byte {
	t.Helper()
	data, err := msgs.NewEnvelope(message, at).Encode()
	require.NoError(t, err)
	return data
}

func TestDispatchElectrodes(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)

	r.Dispatch(msgs.TopicElectrodesStateChange, payload(t, `{"0":true,"5":true,"7":false}`, time.Now()))
	require.Len(t, rec.electrodes, 1)
	require.Equal(t, map[int]bool{0: true, 5: true, 7: false}, rec.electrodes[0])
}

func TestDispatchStaleness(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)
	base := time.Now()
	t1 := base
	t2 := base.Add(time.Second)

	// newest first: the older message must be dropped
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "true", t2))
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "false", t1))
	require.Equal(t, []bool{true}, rec.realtime)

	// an equal timestamp is not strictly newer
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "false", t2))
	require.Equal(t, []bool{true}, rec.realtime)

	// in-order delivery applies both
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "false", t2.Add(time.Second)))
	require.Equal(t, []bool{true, false}, rec.realtime)

	// the table is per topic
	r.Dispatch(msgs.TopicSetFeedback, payload(t, "true", t1))
	require.Equal(t, []bool{true}, rec.feedback)
}

func TestDispatchUntimestamped(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)

	// raw payloads from hand-rolled clients carry no envelope; they
	// bypass the gate and do not advance the table
	r.Dispatch(msgs.TopicSetFeedback, []byte("true"))
	r.Dispatch(msgs.TopicSetFeedback, []byte("false"))
	require.Equal(t, []bool{true, false}, rec.feedback)

	r.Dispatch(msgs.TopicSetFeedback, payload(t, "true", time.Now().Add(-time.Hour)))
	require.Equal(t, []bool{true, false, true}, rec.feedback)
}

func TestDispatchGateWhileDisconnected(t *testing.T) {
	r, rec, _ := newTestRouter(StateDisconnected)
	now := time.Now()

	r.Dispatch(msgs.TopicElectrodesStateChange, payload(t, `{"0":true}`, now))
	r.Dispatch(msgs.TopicSetFeedback, payload(t, "true", now))
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "true", now))
	require.Empty(t, rec.electrodes)
	require.Empty(t, rec.feedback)
	require.Empty(t, rec.realtime)

	r.Dispatch(msgs.TopicChangeSettings, payload(t, `{"baud_rate":57600}`, now))
	require.Len(t, rec.settings, 1)
	require.Equal(t, 57600, *rec.settings[0].BaudRate)

	r.Dispatch(msgs.TopicStartDeviceMonitoring, payload(t, "", now))
	require.Equal(t, 1, rec.starts)

	r.Dispatch(msgs.TopicRetryConnection, payload(t, "", now))
	require.Equal(t, 1, rec.retries)
}

func TestDispatchGateWhileConnecting(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnecting)

	r.Dispatch(msgs.TopicElectrodesStateChange, payload(t, `{"0":true}`, time.Now()))
	require.Empty(t, rec.electrodes)

	r.Dispatch(msgs.TopicRetryConnection, payload(t, "", time.Now()))
	require.Equal(t, 1, rec.retries)
}

func TestDispatchCompatAlias(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)
	now := time.Now()

	r.Dispatch(msgs.CompatTopic(msgs.TopicSetFeedback), payload(t, "true", now))
	require.Equal(t, []bool{true}, rec.feedback)

	// alias topics keep their own staleness row
	r.Dispatch(msgs.TopicSetFeedback, payload(t, "false", now.Add(-time.Minute)))
	require.Equal(t, []bool{true, false}, rec.feedback)
}

func TestDispatchIgnoresForeignTopics(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)
	now := time.Now()

	r.Dispatch("microscope/requests/set_feedback", payload(t, "true", now))
	r.Dispatch(msgs.TopicConnected, payload(t, "true", now))
	r.Dispatch("opendrop", payload(t, "true", now))
	r.Dispatch("opendrop/requests/some_future_verb", payload(t, "x", now))

	require.Empty(t, rec.feedback)
	require.Zero(t, rec.starts)
}

func TestDispatchSingleTemperature(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)

	r.Dispatch(msgs.TopicSetTemperature2, payload(t, "40", time.Now()))
	require.Len(t, rec.temps, 1)
	require.Nil(t, rec.temps[0].T1)
	require.NotNil(t, rec.temps[0].T2)
	require.Equal(t, 40, *rec.temps[0].T2)
	require.Nil(t, rec.temps[0].T3)
}

func TestDispatchTemperatures(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)

	r.Dispatch(msgs.TopicSetTemperatures, payload(t, `{"t1":30,"t3":45}`, time.Now()))
	require.Len(t, rec.temps, 1)
	require.Equal(t, 30, *rec.temps[0].T1)
	require.Nil(t, rec.temps[0].T2)
	require.Equal(t, 45, *rec.temps[0].T3)
}

func TestDispatchBadPayloads(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)
	now := time.Now()

	r.Dispatch(msgs.TopicElectrodesStateChange, payload(t, "not json", now))
	r.Dispatch(msgs.TopicElectrodesStateChange, payload(t, `{"x":true}`, now.Add(time.Second)))
	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "maybe", now))
	r.Dispatch(msgs.TopicSetTemperature1, payload(t, "warm", now))

	require.Empty(t, rec.electrodes)
	require.Empty(t, rec.realtime)
	require.Empty(t, rec.temps)
}

func TestDispatchPythonBoolSpelling(t *testing.T) {
	r, rec, _ := newTestRouter(StateConnected)

	r.Dispatch(msgs.TopicSetRealtimeMode, payload(t, "True", time.Now()))
	require.Equal(t, []bool{true}, rec.realtime)
}

func TestRouterStateTransitions(t *testing.T) {
	r, rec, st := newTestRouter(StateDisconnected)
	now := time.Now()

	r.Dispatch(msgs.TopicSetFeedback, payload(t, "true", now))
	require.Empty(t, rec.feedback)

	*st = StateConnected
	r.Dispatch(msgs.TopicSetFeedback, payload(t, "true", now.Add(time.Second)))
	require.Equal(t, []bool{true}, rec.feedback)
}

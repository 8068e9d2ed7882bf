package frame

// Protocol constants for the OpenDrop controller board.
const (
	// NumChannels is the number of electrode channels on the board.
	NumChannels = 144
	// ElectrodeFrameSize is the size of the outbound electrode frame.
	ElectrodeFrameSize = 18
	// ControlFrameSize is the size of the outbound control frame.
	ControlFrameSize = 14
	// TelemetryFrameSize is the size of a full inbound telemetry frame.
	TelemetryFrameSize = 24

	// MinTemperatureC and MaxTemperatureC bound every temperature
	// setpoint. The firmware has no error channel for invalid values,
	// so out-of-range inputs are clamped, never rejected.
	MinTemperatureC = 20
	MaxTemperatureC = 120
	// DefaultTemperatureC is the setpoint used until configured.
	DefaultTemperatureC = 25
)

// Control frame layout. Bytes not named here are always zero.
const (
	feedbackFlagIndex = 6
	temperatureIndex  = 8
)

// Telemetry frame layout. A response with at least feedbackBytes counts
// as "device responded" even when the temperature and board id tail is
// missing; anything shorter is no response at all.
const (
	feedbackBytes         = 16
	temperatureReadIndex  = 17
	boardIDIndex          = 23
	temperatureReadLength = boardIDIndex - temperatureReadIndex
)

// ElectrodeState is the actuation state of all board channels. The zero
// value has every channel off.
type ElectrodeState struct {
	on [NumChannels]bool
}

// Set turns a channel on or off. Out-of-range channels are ignored and
// reported as false.
func (s *ElectrodeState) Set(ch int, on bool) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	s.on[ch] = on
	return true
}

// On reports whether a channel is actuated.
func (s *ElectrodeState) On(ch int) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	return s.on[ch]
}

// ClearAll turns every channel off.
func (s *ElectrodeState) ClearAll() {
	s.on = [NumChannels]bool{}
}

// ActiveCount returns the number of actuated channels.
func (s *ElectrodeState) ActiveCount() int {
	var n int
	for _, on := range s.on {
		if on {
			n++
		}
	}
	return n
}

// FeedbackMask is the per-channel feedback bitset reported by the board.
// Only the first 128 channels are carried on the wire; the rest stay
// false.
type FeedbackMask [NumChannels]bool

// ActiveCount returns the number of channels reporting feedback.
func (m *FeedbackMask) ActiveCount() int {
	var n int
	for _, on := range m {
		if on {
			n++
		}
	}
	return n
}

// Telemetry is the decoded result of one inbound telemetry frame.
type Telemetry struct {
	// Connected is true when the board produced at least the feedback
	// portion of the frame. A short-but-nonempty tail still counts.
	Connected bool
	// BoardID is the hardware board id, valid only when HasBoardID.
	BoardID    int
	HasBoardID bool
	// Feedback holds the decoded per-channel feedback bits.
	Feedback FeedbackMask
	// Temperatures holds the three readings in Celsius, valid only
	// when HasTemperatures.
	Temperatures    [3]float64
	HasTemperatures bool
	// ResponseLen is the raw response length in bytes.
	ResponseLen int
}

// ClampTemperature bounds a temperature setpoint to the range the
// firmware accepts.
func ClampTemperature(t int) int {
	if t < MinTemperatureC {
		return MinTemperatureC
	}
	if t > MaxTemperatureC {
		return MaxTemperatureC
	}
	return t
}

// EncodeElectrodes packs the channel states into the outbound electrode
// frame. Channel c maps to byte c/8, bit 7-(c%8); the bit order inside
// each byte is a firmware contract and must not change.
func EncodeElectrodes(s *ElectrodeState) [ElectrodeFrameSize]byte {
	var out [ElectrodeFrameSize]byte
	for c := 0; c < NumChannels; c++ {
		if s.on[c] {
			out[c/8] |= 1 << uint(7-c%8)
		}
	}
	return out
}

// EncodeControl packs the control parameters into the outbound control
// frame. Temperatures are clamped before truncation to a byte.
func EncodeControl(feedbackEnabled bool, temps [3]int) [ControlFrameSize]byte {
	var out [ControlFrameSize]byte
	if feedbackEnabled {
		out[feedbackFlagIndex] = 1
	}
	for i, t := range temps {
		out[temperatureIndex+i] = byte(ClampTemperature(t))
	}
	return out
}

// DecodeTelemetry parses a telemetry response of any length. Short
// responses populate as much of the result as the bytes allow: the
// feedback mask fills from min(16, len) bytes, temperatures need 23
// bytes, the board id needs the full 24.
func DecodeTelemetry(resp []byte) Telemetry {
	t := Telemetry{ResponseLen: len(resp)}

	nb := len(resp)
	if nb > feedbackBytes {
		nb = feedbackBytes
	}
	for x := 0; x < nb; x++ {
		b := resp[x]
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				t.Feedback[x*8+7-bit] = true
			}
		}
	}

	if len(resp) >= temperatureReadIndex+temperatureReadLength {
		for i := range t.Temperatures {
			frac := float64(resp[temperatureReadIndex+2*i]) / 100.0
			t.Temperatures[i] = frac + float64(resp[temperatureReadIndex+2*i+1])
		}
		t.HasTemperatures = true
	}
	if len(resp) >= boardIDIndex+1 {
		t.BoardID = int(resp[boardIDIndex])
		t.HasBoardID = true
	}
	t.Connected = len(resp) >= feedbackBytes
	return t
}

package opendrop

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/droplab/opendrop.go/pkg/opendrop/frame"
	"github.com/droplab/opendrop.go/pkg/opendrop/msgs"
)

// signals publishes controller events. Every topic goes out under the
// native prefix and its compat-family alias so DropBot-oriented
// front-ends see the same traffic.
type signals struct {
	bus Bus
}

func (s *signals) pub(topic, message string) {
	if s.bus == nil {
		return
	}
	data, err := msgs.NewEnvelope(message, time.Now()).Encode()
	if err != nil {
		glog.Errorf("encode %s: %v", topic, err)
		return
	}
	s.bus.Pub(topic, data)
	s.bus.Pub(msgs.CompatTopic(topic), data)
}

func (s *signals) pubJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("encode %s: %v", topic, err)
		return
	}
	s.pub(topic, string(data))
}

func (s *signals) connected() {
	s.pub(msgs.TopicConnected, "true")
}

func (s *signals) disconnected() {
	s.pub(msgs.TopicDisconnected, "true")
}

func (s *signals) realtimeMode(on bool) {
	s.pub(msgs.TopicRealtimeModeUpdated, strconv.FormatBool(on))
}

// telemetry publishes the decoded result of one transaction:
// temperature readings, a feedback summary, and the board id when the
// frame carried one.
func (s *signals) telemetry(t *frame.Telemetry) {
	var temps msgs.Temperatures
	if t.HasTemperatures {
		temps.T1 = &t.Temperatures[0]
		temps.T2 = &t.Temperatures[1]
		temps.T3 = &t.Temperatures[2]
	}
	s.pubJSON(msgs.TopicTemperaturesUpdated, temps)
	s.pubJSON(msgs.TopicFeedbackUpdated, msgs.FeedbackSummary{
		ActiveChannels: t.Feedback.ActiveCount(),
	})
	if t.HasBoardID {
		s.pubJSON(msgs.TopicBoardInfo, msgs.BoardInfo{BoardID: t.BoardID})
	}
}

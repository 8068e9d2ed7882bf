package msgs

import "strings"

// Device family prefixes. Every topic published under the native prefix is
// mirrored under the compat prefix so DropBot-oriented front-ends keep
// working against an OpenDrop board.
const (
	DevicePrefix = "opendrop"
	CompatPrefix = "dropbot"
)

// Signal topics published by the controller.
const (
	TopicConnected           = "opendrop/signals/connected"
	TopicDisconnected        = "opendrop/signals/disconnected"
	TopicTemperaturesUpdated = "opendrop/signals/temperatures_updated"
	TopicFeedbackUpdated     = "opendrop/signals/feedback_updated"
	TopicBoardInfo           = "opendrop/signals/board_info"
	TopicRealtimeModeUpdated = "opendrop/signals/realtime_mode_updated"
)

// Request topics handled by the controller.
const (
	TopicStartDeviceMonitoring = "opendrop/requests/start_device_monitoring"
	TopicRetryConnection       = "opendrop/requests/retry_connection"
	TopicElectrodesStateChange = "opendrop/requests/electrodes_state_change"
	TopicSetRealtimeMode       = "opendrop/requests/set_realtime_mode"
	TopicSetFeedback           = "opendrop/requests/set_feedback"
	TopicSetTemperatures       = "opendrop/requests/set_temperatures"
	TopicSetTemperature1       = "opendrop/requests/set_temperature_1"
	TopicSetTemperature2       = "opendrop/requests/set_temperature_2"
	TopicSetTemperature3       = "opendrop/requests/set_temperature_3"
	TopicChangeSettings        = "opendrop/requests/change_settings"
)

// Request verbs, the last topic segment.
const (
	VerbStartDeviceMonitoring = "start_device_monitoring"
	VerbRetryConnection       = "retry_connection"
	VerbElectrodesStateChange = "electrodes_state_change"
	VerbSetRealtimeMode       = "set_realtime_mode"
	VerbSetFeedback           = "set_feedback"
	VerbSetTemperatures       = "set_temperatures"
	VerbSetTemperature1       = "set_temperature_1"
	VerbSetTemperature2       = "set_temperature_2"
	VerbSetTemperature3       = "set_temperature_3"
	VerbChangeSettings        = "change_settings"
)

// Wildcard subscriptions covering all request topics.
const (
	RequestsWildcard       = "opendrop/requests/#"
	CompatRequestsWildcard = "dropbot/requests/#"
	SignalsWildcard        = "opendrop/signals/#"
)

// CompatTopic maps a native topic to its compat-family alias.
func CompatTopic(topic string) string {
	if strings.HasPrefix(topic, DevicePrefix+"/") {
		return CompatPrefix + strings.TrimPrefix(topic, DevicePrefix)
	}
	return topic
}

// SplitTopic splits a topic of the form device/kind/.../verb. The verb is
// the last segment, so nested request topics still route on their tail.
func SplitTopic(topic string) (device, kind, verb string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[len(parts)-1], true
}

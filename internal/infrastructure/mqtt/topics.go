package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the gate device channel.
//
// Each physical controller owns two topics keyed by its serial number:
//
//	gate/{serial}/cmd    - commands from GateOS to the controller
//	gate/{serial}/status - free-text status tokens from the controller
//
// The per-serial partitioning means no cross-device message leakage is
// possible at the broker level.
const (
	// TopicPrefixGate is the base for all gate controller topics.
	TopicPrefixGate = "gate"

	// TopicPrefixSystem is the base for GateOS system topics.
	TopicPrefixSystem = "gateos/system"
)

// Topics provides builders for GateOS MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// DeviceCommand returns the outbound command topic for a controller.
//
// Example: gate/SN-001/cmd
func (Topics) DeviceCommand(serial string) string {
	return fmt.Sprintf("%s/%s/cmd", TopicPrefixGate, serial)
}

// DeviceStatus returns the status topic a controller publishes to.
//
// Example: gate/SN-001/status
func (Topics) DeviceStatus(serial string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixGate, serial)
}

// AllDeviceStatus returns a pattern matching every controller's status topic.
//
// Pattern: gate/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixGate)
}

// SystemStatus returns the GateOS online/offline status topic.
//
// Example: gateos/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SerialFromStatusTopic extracts the device serial from a status topic.
// Returns false if the topic does not match gate/{serial}/status exactly.
func (Topics) SerialFromStatusTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefixGate || parts[2] != "status" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

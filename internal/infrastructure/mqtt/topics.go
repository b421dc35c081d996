package mqtt

import (
	"fmt"
	"net/url"
)

// Topic prefixes.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{address}.
// Controller topics live under graylogic/core.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixCore is the base for controller topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.BridgeCommand("knx", "light-kitchen")
//	// "graylogic/command/knx/light-kitchen"
type Topics struct{}

// BridgeState returns the topic a bridge publishes device state on.
//
// Example: graylogic/state/knx/1%2F1%2F1
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, EncodeAddress(address))
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/knx/1%2F0%2F1
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, EncodeAddress(address))
}

// EncodeAddress escapes a device address for use as one topic level.
// KNX group addresses contain slashes: "1/2/3" becomes "1%2F2%2F3".
func EncodeAddress(address string) string {
	return url.PathEscape(address)
}

// DecodeAddress reverses EncodeAddress.
func DecodeAddress(level string) (string, error) {
	address, err := url.PathUnescape(level)
	if err != nil {
		return "", fmt.Errorf("decoding topic address %q: %w", level, err)
	}
	return address, nil
}

// CoreAutomationState returns the topic carrying an automation's lifecycle state.
//
// Example: graylogic/core/automation/conditional_on:kitchen/state
func (Topics) CoreAutomationState(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/state", TopicPrefixCore, automationID)
}

// CoreAutomationFired returns the topic for automation trigger records.
//
// Example: graylogic/core/automation/roller_shutter:living/fired
func (Topics) CoreAutomationFired(automationID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefixCore, automationID)
}

// SystemStatus returns the controller status topic (online/offline, LWT).
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllBridgeStates matches every bridge state update.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllAutomationFired matches every automation trigger record.
//
// Pattern: graylogic/core/automation/+/fired
func (Topics) AllAutomationFired() string {
	return fmt.Sprintf("%s/automation/+/fired", TopicPrefixCore)
}

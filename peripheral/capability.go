package peripheral

import "strings"

// Kind tags a capability as command-issuing or notification-receiving.
type Kind int

const (
	// Action capabilities expose command methods on the peripheral.
	Action Kind = iota

	// Sensing capabilities deliver change notifications to a hub callback.
	Sensing
)

// Capability is one named behavior a peripheral exposes.
type Capability struct {
	// Name is the capability tag, e.g. "sense_color" or "action_speed".
	Name string

	// Kind distinguishes Action from Sensing.
	Kind Kind

	// Mode is the wire input mode the capability's values ride on.
	Mode byte

	// Callback names the hub handler for Sensing capabilities, derived from
	// the tag: sense_color -> color_change. Empty for Action capabilities.
	Callback string
}

// Sense builds a Sensing capability with its conventional callback name.
func Sense(name string, mode byte) Capability {
	return Capability{
		Name:     name,
		Kind:     Sensing,
		Mode:     mode,
		Callback: strings.TrimPrefix(name, "sense_") + "_change",
	}
}

// Act builds an Action capability.
func Act(name string) Capability {
	return Capability{Name: name, Kind: Action}
}

// Predefined capabilities for the shipped device types.
var (
	CapActionSpeed = Act("action_speed")
	CapActionColor = Act("action_color")

	CapSenseColor    = Sense("sense_color", 0)
	CapSenseDistance = Sense("sense_distance", 1)
	CapSenseTilt     = Sense("sense_tilt", 0)
	CapSensePress    = Sense("sense_press", 0)
	CapSenseSpeed    = Sense("sense_speed", 1)
	CapSensePos      = Sense("sense_pos", 2)
	CapSenseVoltage  = Sense("sense_volt", 0)
	CapSenseCurrent  = Sense("sense_curr", 0)
)

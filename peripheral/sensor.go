package peripheral

// Wire I/O type identifiers for the shipped sensor family.
const (
	TypeButton        uint16 = 0x0005
	TypeVisionSensor  uint16 = 0x0025
	TypeTiltSensor    uint16 = 0x0028
	TypeCurrentSensor uint16 = 0x003B
	TypeVoltageSensor uint16 = 0x003C
)

// VisionSensor senses color and distance. Callers pick the capability subset
// they want notifications for; both are enabled by default.
type VisionSensor struct {
	*Peripheral
}

// NewVisionSensor creates a vision sensor. With no explicit capabilities it
// senses both color and distance.
func NewVisionSensor(name string, port int, caps ...Capability) *VisionSensor {
	if len(caps) == 0 {
		caps = []Capability{CapSenseColor, CapSenseDistance}
	}
	return &VisionSensor{Peripheral: newPeripheral(name, port, TypeVisionSensor, caps)}
}

// TiltSensor senses hub orientation.
type TiltSensor struct {
	*Peripheral
}

// NewTiltSensor creates an internal tilt sensor.
func NewTiltSensor(name string, port int) *TiltSensor {
	return &TiltSensor{Peripheral: newPeripheral(name, port, TypeTiltSensor, []Capability{CapSenseTilt})}
}

// Button senses presses of the hub's built-in button.
type Button struct {
	*Peripheral
}

// NewButton creates a button peripheral.
func NewButton(name string, port int) *Button {
	return &Button{Peripheral: newPeripheral(name, port, TypeButton, []Capability{CapSensePress})}
}

// VoltageSensor reports the hub battery voltage.
type VoltageSensor struct {
	*Peripheral
}

// NewVoltageSensor creates a voltage sensor.
func NewVoltageSensor(name string, port int) *VoltageSensor {
	return &VoltageSensor{Peripheral: newPeripheral(name, port, TypeVoltageSensor, []Capability{CapSenseVoltage})}
}

// CurrentSensor reports the hub current draw.
type CurrentSensor struct {
	*Peripheral
}

// NewCurrentSensor creates a current sensor.
func NewCurrentSensor(name string, port int) *CurrentSensor {
	return &CurrentSensor{Peripheral: newPeripheral(name, port, TypeCurrentSensor, []Capability{CapSenseCurrent})}
}

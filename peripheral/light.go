package peripheral

import (
	"context"

	"github.com/hub-control/hubcore/codec"
)

// TypeRGBLight is the wire I/O type of the hub's built-in RGB LED.
const TypeRGBLight uint16 = 0x0017

// LED is the hub status light, addressable as an RGB triple.
type LED struct {
	*Peripheral
}

// NewLED creates an LED peripheral.
func NewLED(name string, port int) *LED {
	return &LED{Peripheral: newPeripheral(name, port, TypeRGBLight, []Capability{CapActionColor})}
}

// SetColor sets the LED to an RGB color.
func (l *LED) SetColor(ctx context.Context, r, g, b byte) error {
	frame := codec.EncodeSetRGB(l.wirePort(), r, g, b)
	return l.send(ctx, "led.set_color", frame)
}

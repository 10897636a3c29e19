package peripheral

import (
	"context"
	"fmt"
	"time"

	"github.com/hub-control/hubcore/codec"
)

// Wire I/O type identifiers for the shipped motor family.
const (
	TypeSimpleMotor     uint16 = 0x0001
	TypeTrainMotor      uint16 = 0x0002
	TypeTechnicXLMotor  uint16 = 0x002F
	TypeTechnicLgeMotor uint16 = 0x002E
)

// Motor is a speed-controllable motor on one port.
type Motor struct {
	*Peripheral
}

// NewMotor creates a simple motor. Extra capabilities (CapSenseSpeed,
// CapSensePos on tacho motors) may be requested at construction.
func NewMotor(name string, port int, caps ...Capability) *Motor {
	return newMotor(name, port, TypeSimpleMotor, caps)
}

// NewTrainMotor creates a train motor.
func NewTrainMotor(name string, port int, caps ...Capability) *Motor {
	return newMotor(name, port, TypeTrainMotor, caps)
}

// NewTechnicXLMotor creates a Technic XL linear motor.
func NewTechnicXLMotor(name string, port int, caps ...Capability) *Motor {
	return newMotor(name, port, TypeTechnicXLMotor, caps)
}

func newMotor(name string, port int, devType uint16, extra []Capability) *Motor {
	caps := append([]Capability{CapActionSpeed}, extra...)
	return &Motor{Peripheral: newPeripheral(name, port, devType, caps)}
}

// SetSpeed sets the duty cycle, -100..100. Zero stops the motor.
func (m *Motor) SetSpeed(ctx context.Context, speed int8) error {
	if speed < -100 || speed > 100 {
		return fmt.Errorf("speed %d outside [-100, 100]", speed)
	}
	frame := codec.EncodeSetPower(m.wirePort(), speed)
	return m.send(ctx, "motor.set_speed", frame)
}

// Stop sets the duty cycle to zero.
func (m *Motor) Stop(ctx context.Context) error {
	return m.SetSpeed(ctx, 0)
}

// Finalize stops the motor during hub teardown.
func (m *Motor) Finalize(ctx context.Context) error {
	return m.Stop(ctx)
}

// RampSpeed steps the duty cycle from the current target to toSpeed over the
// given duration, issuing one command per step. Each step rides the shared
// command channel, so ramps from several motors interleave fairly.
func (m *Motor) RampSpeed(ctx context.Context, fromSpeed, toSpeed int8, duration time.Duration) error {
	const steps = 10
	if duration <= 0 {
		return m.SetSpeed(ctx, toSpeed)
	}

	delta := (int(toSpeed) - int(fromSpeed)) / steps
	interval := duration / steps
	speed := int(fromSpeed)
	for i := 0; i < steps; i++ {
		speed += delta
		if err := m.SetSpeed(ctx, int8(speed)); err != nil {
			return err
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.SetSpeed(ctx, toSpeed)
}

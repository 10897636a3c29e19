package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Message types (LWP common header, third byte).
const (
	MsgHubProperties        = 0x01
	MsgHubAttachedIO        = 0x04
	MsgGenericError         = 0x05
	MsgPortInfoRequest      = 0x21
	MsgPortInputFormatSetup = 0x41
	MsgPortInformation      = 0x43
	MsgPortModeInformation  = 0x44
	MsgPortValueSingle      = 0x45
	MsgPortInputFormat      = 0x47
	MsgPortOutputCommand    = 0x81
	MsgPortOutputFeedback   = 0x82
)

// Attached I/O events (MsgHubAttachedIO payload byte 1).
const (
	EventDetached = 0x00
	EventAttached = 0x01
	EventVirtual  = 0x02
)

// Port information request types.
const (
	InfoPortValue        = 0x00
	InfoModeInfo         = 0x01
	InfoModeCombinations = 0x02
)

const hubID = 0x00

// ErrShortFrame indicates a frame too small to carry the common header.
var ErrShortFrame = errors.New("frame shorter than common header")

// ErrLengthMismatch indicates the declared length does not match the frame.
var ErrLengthMismatch = errors.New("frame length mismatch")

// Message is one decoded inbound frame: the common header plus the raw
// payload after the message-type byte.
type Message struct {
	Type    byte
	Payload []byte
}

// Port returns the port identifier for port-addressed message types. The
// port is the first payload byte for every 0x2x/0x4x/0x8x message the core
// handles.
func (m Message) Port() byte {
	if len(m.Payload) == 0 {
		return 0xFF
	}
	return m.Payload[0]
}

// frame prepends the common header. Frames the core emits never exceed 127
// bytes, so the single-byte length form is always sufficient.
func frame(msgType byte, payload []byte) []byte {
	b := make([]byte, 0, 3+len(payload))
	b = append(b, byte(3+len(payload)), hubID, msgType)
	return append(b, payload...)
}

// Decode parses one inbound frame into a Message.
func Decode(raw []byte) (Message, error) {
	if len(raw) < 3 {
		return Message{}, ErrShortFrame
	}
	if int(raw[0]) != len(raw) {
		return Message{}, fmt.Errorf("%w: declared %d, got %d", ErrLengthMismatch, raw[0], len(raw))
	}
	return Message{Type: raw[2], Payload: raw[3:]}, nil
}

// AttachedIO is a decoded hub-attached-I/O notification.
type AttachedIO struct {
	Port       byte
	Event      byte
	DeviceType uint16
}

// DecodeAttachedIO decodes a MsgHubAttachedIO payload. Detach events carry no
// device type.
func DecodeAttachedIO(m Message) (AttachedIO, error) {
	if m.Type != MsgHubAttachedIO || len(m.Payload) < 2 {
		return AttachedIO{}, fmt.Errorf("not an attached-io message (type 0x%02x, %d bytes)", m.Type, len(m.Payload))
	}
	io := AttachedIO{Port: m.Payload[0], Event: m.Payload[1]}
	if io.Event != EventDetached {
		if len(m.Payload) < 4 {
			return AttachedIO{}, fmt.Errorf("attached-io payload too short: %d bytes", len(m.Payload))
		}
		io.DeviceType = binary.LittleEndian.Uint16(m.Payload[2:4])
	}
	return io, nil
}

// PortValue is a decoded single-port value notification. Raw layout depends
// on the active input mode; the core hands it to the registered sensing
// handler undecoded beyond the port split.
type PortValue struct {
	Port byte
	Raw  []byte
}

// DecodePortValue decodes a MsgPortValueSingle payload.
func DecodePortValue(m Message) (PortValue, error) {
	if m.Type != MsgPortValueSingle || len(m.Payload) < 1 {
		return PortValue{}, fmt.Errorf("not a port-value message (type 0x%02x)", m.Type)
	}
	return PortValue{Port: m.Payload[0], Raw: m.Payload[1:]}, nil
}

// PortInformation is a decoded port information reply.
type PortInformation struct {
	Port         byte
	Capabilities byte
	ModeCount    byte
	InputModes   uint16
	OutputModes  uint16
}

// DecodePortInformation decodes a MsgPortInformation payload in mode-info
// form.
func DecodePortInformation(m Message) (PortInformation, error) {
	if m.Type != MsgPortInformation || len(m.Payload) < 8 {
		return PortInformation{}, fmt.Errorf("not a port-information message (type 0x%02x, %d bytes)", m.Type, len(m.Payload))
	}
	return PortInformation{
		Port:         m.Payload[0],
		Capabilities: m.Payload[2],
		ModeCount:    m.Payload[3],
		InputModes:   binary.LittleEndian.Uint16(m.Payload[4:6]),
		OutputModes:  binary.LittleEndian.Uint16(m.Payload[6:8]),
	}, nil
}

// PortInputFormat is a decoded port input format reply, confirming which mode
// is active on a port and whether notifications are enabled.
type PortInputFormat struct {
	Port    byte
	Mode    byte
	Delta   uint32
	Enabled bool
}

// DecodePortInputFormat decodes a MsgPortInputFormat payload.
func DecodePortInputFormat(m Message) (PortInputFormat, error) {
	if m.Type != MsgPortInputFormat || len(m.Payload) < 7 {
		return PortInputFormat{}, fmt.Errorf("not a port-input-format message (type 0x%02x, %d bytes)", m.Type, len(m.Payload))
	}
	return PortInputFormat{
		Port:    m.Payload[0],
		Mode:    m.Payload[1],
		Delta:   binary.LittleEndian.Uint32(m.Payload[2:6]),
		Enabled: m.Payload[6] != 0,
	}, nil
}

// EncodePortInfoRequest builds a port information request for a port.
func EncodePortInfoRequest(port byte, infoType byte) []byte {
	return frame(MsgPortInfoRequest, []byte{port, infoType})
}

// EncodeInputFormatSetup builds a port input format setup command selecting a
// mode, a notification delta, and whether change notifications are sent.
func EncodeInputFormatSetup(port, mode byte, delta uint32, notify bool) []byte {
	payload := make([]byte, 7)
	payload[0] = port
	payload[1] = mode
	binary.LittleEndian.PutUint32(payload[2:6], delta)
	if notify {
		payload[6] = 1
	}
	return frame(MsgPortInputFormatSetup, payload)
}

// EncodeWriteDirect builds a port output command writing mode data directly
// (startup+completion 0x11, subcommand 0x51). Motor power and LED color both
// ride on this form.
func EncodeWriteDirect(port, mode byte, data ...byte) []byte {
	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, port, 0x11, 0x51, mode)
	return frame(MsgPortOutputCommand, append(payload, data...))
}

// EncodeSetPower builds the write-direct form used to set a motor's duty
// cycle, -100..100.
func EncodeSetPower(port byte, power int8) []byte {
	return EncodeWriteDirect(port, 0x00, byte(power))
}

// EncodeSetRGB builds the write-direct form used to set an RGB LED color.
func EncodeSetRGB(port byte, r, g, b byte) []byte {
	return EncodeWriteDirect(port, 0x01, r, g, b)
}

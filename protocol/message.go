package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Modifier is the keyboard modifier bitmask from byte 0 of a keyboard
// report. The bit assignments follow the USB HID boot protocol.
type Modifier byte

// Modifier bits.
const (
	ModLeftCtrl Modifier = 1 << iota
	ModLeftShift
	ModLeftAlt
	ModLeftGUI
	ModRightCtrl
	ModRightShift
	ModRightAlt
	ModRightGUI
)

var modifierNames = [8]string{
	"LCTRL", "LSHIFT", "LALT", "LGUI", "RCTRL", "RSHIFT", "RALT", "RGUI",
}

func (m Modifier) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for i, name := range modifierNames {
		if m&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "+")
}

// Button is the mouse button bitmask from byte 0 of a mouse report.
type Button byte

// Button bits.
const (
	ButtonLeft Button = 1 << iota
	ButtonRight
	ButtonMiddle
)

var buttonNames = [3]string{"LEFT", "RIGHT", "MIDDLE"}

func (b Button) String() string {
	if b == 0 {
		return "none"
	}
	var names []string
	for i, name := range buttonNames {
		if b&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "+")
}

// Message is a decoded packet payload. String renders a one-line
// human-readable form for monitors and logs.
type Message interface {
	MsgType() MsgType
	String() string
}

// MalformedPayloadError reports a payload whose length does not match the
// shape required by its message type. Only the offending packet is
// affected; the stream stays in sync.
type MalformedPayloadError struct {
	Type MsgType
	Len  int
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %d bytes", e.Type, e.Len)
}

// KeyboardReport is a standard 8-byte HID boot keyboard report.
type KeyboardReport struct {
	Modifiers Modifier
	Keys      [6]byte // keycodes; 0 means no key in that slot
}

// MsgType implements Message.
func (KeyboardReport) MsgType() MsgType { return TypeKeyboardReport }

func (r KeyboardReport) String() string {
	var keys []string
	for _, k := range r.Keys {
		if k != 0 {
			keys = append(keys, fmt.Sprintf("0x%02X", k))
		}
	}
	pressed := "none"
	if len(keys) > 0 {
		pressed = strings.Join(keys, " ")
	}
	return fmt.Sprintf("KEYBOARD: mod=%s, keys=[%s]", r.Modifiers, pressed)
}

// MouseReport is a relative HID mouse report.
type MouseReport struct {
	Buttons Button
	DX, DY  int8
}

// MsgType implements Message.
func (MouseReport) MsgType() MsgType { return TypeMouseReport }

func (r MouseReport) String() string {
	return fmt.Sprintf("MOUSE: buttons=%s, dx=%+d, dy=%+d", r.Buttons, r.DX, r.DY)
}

// Status carries free-form text from the peer. Text is empty when the
// payload was not valid UTF-8; Raw always holds the payload bytes.
type Status struct {
	Text string
	Raw  []byte
}

// MsgType implements Message.
func (Status) MsgType() MsgType { return TypeStatus }

func (s Status) String() string {
	if s.Text == "" && len(s.Raw) > 0 {
		return fmt.Sprintf("STATUS: %x", s.Raw)
	}
	return "STATUS: " + s.Text
}

// LedUpdate carries the attached host's LED state. The payload layout
// belongs to the firmware and is passed through undecoded.
type LedUpdate struct {
	Raw []byte
}

// MsgType implements Message.
func (LedUpdate) MsgType() MsgType { return TypeLedUpdate }

func (l LedUpdate) String() string {
	return fmt.Sprintf("LED: %x", l.Raw)
}

// Ack is an empty acknowledgement.
type Ack struct{}

// MsgType implements Message.
func (Ack) MsgType() MsgType { return TypeAck }

func (Ack) String() string { return "ACK" }

// Unknown carries a packet whose type this implementation does not know.
// It is not an error; newer peers may define additional types and the
// stream continues undisturbed.
type Unknown struct {
	Type    MsgType
	Payload []byte
}

// MsgType implements Message.
func (u Unknown) MsgType() MsgType { return u.Type }

func (u Unknown) String() string {
	return fmt.Sprintf("UNKNOWN 0x%02X: %x", byte(u.Type), u.Payload)
}

// ParseMessage interprets a packet's payload according to its type. A
// known type with a wrong-shape payload yields *MalformedPayloadError
// carrying the observed length. Variable-length payloads are copied, so
// the returned message does not alias the packet buffer.
func ParseMessage(p Packet) (Message, error) {
	switch p.Type {
	case TypeKeyboardReport:
		if len(p.Payload) != KeyboardReportLen {
			return nil, &MalformedPayloadError{Type: p.Type, Len: len(p.Payload)}
		}
		r := KeyboardReport{Modifiers: Modifier(p.Payload[0])}
		copy(r.Keys[:], p.Payload[2:KeyboardReportLen])
		return r, nil

	case TypeMouseReport:
		if len(p.Payload) < MouseReportMin {
			return nil, &MalformedPayloadError{Type: p.Type, Len: len(p.Payload)}
		}
		return MouseReport{
			Buttons: Button(p.Payload[0]),
			DX:      int8(p.Payload[1]),
			DY:      int8(p.Payload[2]),
		}, nil

	case TypeStatus:
		s := Status{Raw: append([]byte(nil), p.Payload...)}
		if utf8.Valid(p.Payload) {
			s.Text = string(p.Payload)
		}
		return s, nil

	case TypeLedUpdate:
		return LedUpdate{Raw: append([]byte(nil), p.Payload...)}, nil

	case TypeAck:
		return Ack{}, nil

	default:
		return Unknown{Type: p.Type, Payload: append([]byte(nil), p.Payload...)}, nil
	}
}

// Package protocol implements the framed message protocol spoken over the
// HID proxy's serial link.
//
// The wire format is a start marker, a one-byte message type, a 16-bit
// little-endian payload length, the payload, and a trailing XOR checksum.
// Encoding is a pure function; decoding is a small state machine that
// resynchronizes on the start marker after any failure, so a receiver can
// attach mid-stream or survive line noise without losing the link.
package protocol

import "fmt"

// Wire framing constants.
const (
	StartByte  = 0xAA // packet start marker
	HeaderSize = 4    // start + type + 16-bit length
	MaxPayload = 65535
)

// Payload shape constants for the HID report types.
const (
	KeyboardReportLen = 8 // modifier, reserved, six keycodes
	MouseReportMin    = 3 // buttons, dx, dy; extra bytes are reserved
)

// MsgType identifies the payload carried by a packet.
type MsgType byte

// Message types. The values are part of the wire contract shared with the
// firmware side and must not be renumbered.
const (
	TypeKeyboardReport MsgType = 0x01 // HID keyboard report (8 bytes)
	TypeMouseReport    MsgType = 0x02 // HID mouse report (3+ bytes)
	TypeLedUpdate      MsgType = 0x03 // LED state from the attached host
	TypeStatus         MsgType = 0x04 // status/debug text
	TypeAck            MsgType = 0x05 // acknowledgement, empty payload
)

func (t MsgType) String() string {
	switch t {
	case TypeKeyboardReport:
		return "keyboard"
	case TypeMouseReport:
		return "mouse"
	case TypeLedUpdate:
		return "led"
	case TypeStatus:
		return "status"
	case TypeAck:
		return "ack"
	default:
		return fmt.Sprintf("type(0x%02X)", byte(t))
	}
}

// Packet is one framed message. Packets are transient: they exist between
// building and transmission on the send side, and between a successful
// checksum match and consumption on the receive side. No state is carried
// from one packet to the next.
type Packet struct {
	Type    MsgType
	Payload []byte
}

// Checksum computes the running XOR over the given byte sequences. On the
// wire it covers everything from the start marker through the last payload
// byte; the checksum byte itself is excluded.
//
// XOR detects any odd number of flipped bits in a bit position, but flips
// of the same bit in two covered bytes cancel out, as do byte swaps. The
// gap is inherent to the wire format and kept for compatibility with the
// firmware counterpart.
func Checksum(parts ...[]byte) byte {
	var sum byte
	for _, part := range parts {
		for _, b := range part {
			sum ^= b
		}
	}
	return sum
}

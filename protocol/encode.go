package protocol

import (
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned by Encode when the payload does not fit
// the 16-bit length field.
var ErrPayloadTooLarge = errors.New("payload too large")

// Encode frames a payload for transmission:
//
//	start, type, length (little-endian 16-bit), payload, XOR checksum
//
// Encode is payload-agnostic; it does not check that the payload matches
// the shape implied by the message type. The only failure mode is a
// payload longer than MaxPayload. Feeding the result to a Decoder yields
// the original type and payload unchanged.
func Encode(t MsgType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	frame := make([]byte, 0, HeaderSize+len(payload)+1)
	frame = append(frame, StartByte, byte(t), byte(len(payload)), byte(len(payload)>>8))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame))
	return frame, nil
}

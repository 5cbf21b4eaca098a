package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"hidlink/protocol"
)

// Render produces the topic and JSON payload for one decoded message.
// It is a pure function so topic routing and payload shapes can be tested
// without a broker.
func Render(prefix string, msg protocol.Message) (string, []byte, error) {
	var (
		leaf string
		body any
	)

	switch m := msg.(type) {
	case protocol.KeyboardReport:
		leaf = "keyboard"
		body = keyboardEvent{Modifiers: m.Modifiers.String(), Keys: activeKeys(m)}
	case protocol.MouseReport:
		leaf = "mouse"
		body = mouseEvent{Buttons: m.Buttons.String(), DX: m.DX, DY: m.DY}
	case protocol.Status:
		leaf = "status"
		ev := statusEvent{Text: m.Text}
		if m.Text == "" {
			ev.Raw = hex.EncodeToString(m.Raw)
		}
		body = ev
	case protocol.LedUpdate:
		leaf = "led"
		body = rawEvent{Raw: hex.EncodeToString(m.Raw)}
	case protocol.Ack:
		leaf = "ack"
		body = struct{}{}
	case protocol.Unknown:
		leaf = "unknown"
		body = unknownEvent{Type: uint8(m.Type), Payload: hex.EncodeToString(m.Payload)}
	default:
		return "", nil, fmt.Errorf("bridge: no topic for %T", msg)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("bridge: marshal %s event: %w", leaf, err)
	}
	return prefix + "/" + leaf, payload, nil
}

// activeKeys returns the non-empty keycode slots of a keyboard report.
func activeKeys(r protocol.KeyboardReport) []uint8 {
	keys := make([]uint8, 0, len(r.Keys))
	for _, k := range r.Keys {
		if k != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

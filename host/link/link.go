// Package link layers the framed HID protocol over a byte stream,
// typically a serial port shared with the proxy firmware.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"hidlink/host/serial"
	"hidlink/protocol"
)

// Handler consumes one decoded message.
type Handler func(protocol.Message)

// Stats counts decode outcomes over the life of a link.
type Stats struct {
	Decoded        uint64
	HeaderErrors   uint64
	BodyErrors     uint64
	ChecksumErrors uint64
	Malformed      uint64
	UnknownTypes   uint64
}

// Link is one end of the proxy's serial connection. It owns the decoder
// state, so a Link must be driven from a single goroutine; interleaved
// reads from two callers would corrupt framing.
type Link struct {
	rw    io.ReadWriter
	dec   *protocol.Decoder
	log   zerolog.Logger
	port  serial.Port // nil when built over a plain ReadWriter
	stats Stats
}

// Dial opens the configured serial port and wraps it in a Link. Stale
// input buffered in the port is discarded first.
func Dial(cfg *serial.Config, log zerolog.Logger) (*Link, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush serial port: %w", err)
	}
	l := New(port, log)
	l.port = port
	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("serial link opened")
	return l, nil
}

// New wraps an existing byte stream. The stream's Read should follow the
// bounded-timeout contract described on protocol.Decoder.
func New(rw io.ReadWriter, log zerolog.Logger) *Link {
	return &Link{rw: rw, dec: protocol.NewDecoder(rw), log: log}
}

// Close closes the underlying port, when there is one.
func (l *Link) Close() error {
	if l.port != nil {
		return l.port.Close()
	}
	return nil
}

// Stats returns a snapshot of the link's decode counters.
func (l *Link) Stats() Stats { return l.stats }

// Send frames and transmits one packet as a single write.
func (l *Link) Send(t protocol.MsgType, payload []byte) error {
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	if _, err := l.rw.Write(frame); err != nil {
		return fmt.Errorf("write %s packet: %w", t, err)
	}
	return nil
}

// SendKeyboard transmits an 8-byte boot keyboard report.
func (l *Link) SendKeyboard(mod protocol.Modifier, keys [6]byte) error {
	payload := make([]byte, protocol.KeyboardReportLen)
	payload[0] = byte(mod)
	copy(payload[2:], keys[:])
	return l.Send(protocol.TypeKeyboardReport, payload)
}

// SendMouse transmits a relative mouse report.
func (l *Link) SendMouse(buttons protocol.Button, dx, dy int8) error {
	return l.Send(protocol.TypeMouseReport, []byte{byte(buttons), byte(dx), byte(dy)})
}

// SendStatus transmits a UTF-8 status message.
func (l *Link) SendStatus(text string) error {
	return l.Send(protocol.TypeStatus, []byte(text))
}

// SendAck transmits an empty acknowledgement.
func (l *Link) SendAck() error {
	return l.Send(protocol.TypeAck, nil)
}

// RecvRaw returns the next framed packet, surfacing every decode outcome
// to the caller, including recoverable per-packet errors and ErrNoData.
func (l *Link) RecvRaw() (protocol.Packet, error) {
	pkt, err := l.dec.Next()
	l.observe(err)
	return pkt, err
}

// Recv returns the next successfully decoded message. Recoverable framing
// errors are logged and skipped; protocol.ErrNoData is surfaced so the
// caller stays in control of its own timeout policy. A known type with a
// wrong-shape payload is returned as *protocol.MalformedPayloadError.
func (l *Link) Recv() (protocol.Message, error) {
	for {
		pkt, err := l.dec.Next()
		l.observe(err)
		switch {
		case err == nil:
		case protocol.IsRecoverable(err):
			l.log.Warn().Err(err).Msg("dropped packet")
			continue
		default:
			return nil, err
		}
		return l.parse(pkt)
	}
}

// Run decodes messages until ctx is cancelled or the transport fails.
// Recoverable stream errors and malformed payloads are logged and counted
// but never stop the loop.
func (l *Link) Run(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := l.dec.Next()
		l.observe(err)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrNoData):
			continue
		case protocol.IsRecoverable(err):
			l.log.Warn().Err(err).Msg("dropped packet")
			continue
		case errors.Is(err, io.EOF):
			return err
		default:
			return fmt.Errorf("serial link failed: %w", err)
		}

		msg, err := l.parse(pkt)
		if err != nil {
			l.log.Warn().Err(err).Msg("malformed payload")
			continue
		}
		h(msg)
	}
}

func (l *Link) parse(pkt protocol.Packet) (protocol.Message, error) {
	msg, err := protocol.ParseMessage(pkt)
	if err != nil {
		l.stats.Malformed++
		return nil, err
	}
	l.stats.Decoded++
	if _, ok := msg.(protocol.Unknown); ok {
		l.stats.UnknownTypes++
		l.log.Debug().Stringer("type", pkt.Type).Int("len", len(pkt.Payload)).Msg("unrecognized message type")
	}
	return msg, nil
}

func (l *Link) observe(err error) {
	var (
		he *protocol.HeaderError
		be *protocol.BodyError
		ce *protocol.ChecksumError
	)
	switch {
	case errors.As(err, &he):
		l.stats.HeaderErrors++
	case errors.As(err, &be):
		l.stats.BodyErrors++
	case errors.As(err, &ce):
		l.stats.ChecksumErrors++
	}
}

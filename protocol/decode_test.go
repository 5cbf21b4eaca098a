package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// scriptedSource plays back a fixed sequence of read results. Each Read
// call delivers at most one chunk; a nil chunk models a timed-out read
// (0 bytes, nil error). After the script runs out it reports io.EOF.
type scriptedSource struct {
	chunks [][]byte
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := s.chunks[0]
	if len(chunk) == 0 {
		s.chunks = s.chunks[1:]
		return 0, nil
	}
	n := copy(p, chunk)
	if n == len(chunk) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = chunk[n:]
	}
	return n, nil
}

func mustEncode(t *testing.T, typ MsgType, payload []byte) []byte {
	t.Helper()
	frame, err := Encode(typ, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return frame
}

func TestDecoderResync(t *testing.T) {
	first := mustEncode(t, TypeKeyboardReport, []byte{0x02, 0x00, 0x04, 0, 0, 0, 0, 0})
	second := mustEncode(t, TypeStatus, []byte("ok"))

	var stream []byte
	stream = append(stream, 0x00, 0x37, 0xFF, 0x12) // line noise before anything
	stream = append(stream, first...)
	stream = append(stream, 0x55, 0x01, 0x99) // more noise between packets
	stream = append(stream, second...)

	dec := NewDecoder(bytes.NewReader(stream))

	pkt, err := dec.Next()
	if err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if pkt.Type != TypeKeyboardReport {
		t.Errorf("first packet type = %s, want keyboard", pkt.Type)
	}

	pkt, err = dec.Next()
	if err != nil {
		t.Fatalf("second Next failed: %v", err)
	}
	if pkt.Type != TypeStatus || string(pkt.Payload) != "ok" {
		t.Errorf("second packet = %s % X", pkt.Type, pkt.Payload)
	}

	// Nothing left but end of stream; noise must not have produced events.
	if _, err = dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last packet, got %v", err)
	}
}

func TestDecoderTruncatedHeader(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0xAA, 0x01}))

	_, err := dec.Next()
	var he *HeaderError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HeaderError, got %v", err)
	}
	if he.Got != 1 {
		t.Errorf("HeaderError.Got = %d, want 1", he.Got)
	}
	if !IsRecoverable(err) {
		t.Error("header failure must be recoverable")
	}

	if _, err = dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after truncation, got %v", err)
	}
}

func TestDecoderTruncatedBody(t *testing.T) {
	frame := mustEncode(t, TypeKeyboardReport, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	dec := NewDecoder(bytes.NewReader(frame[:HeaderSize+3])) // 3 of 9 body bytes

	_, err := dec.Next()
	var be *BodyError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BodyError, got %v", err)
	}
	if be.Want != 9 || be.Got != 3 {
		t.Errorf("BodyError = got %d of %d, want got 3 of 9", be.Got, be.Want)
	}
}

func TestDecoderBodyTimeout(t *testing.T) {
	// Header arrives, then the line goes quiet mid-body. The bounded read
	// elapsing is a short read, not a hang.
	frame := mustEncode(t, TypeStatus, []byte("hello"))
	src := &scriptedSource{chunks: [][]byte{frame[:HeaderSize+2], nil, frame[HeaderSize+2:]}}
	dec := NewDecoder(src)

	_, err := dec.Next()
	var be *BodyError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BodyError, got %v", err)
	}
	if be.Got != 2 {
		t.Errorf("BodyError.Got = %d, want 2", be.Got)
	}
}

func TestDecoderBodyAcrossReads(t *testing.T) {
	// A body split over several deliveries is fine as long as every
	// bounded read makes progress.
	frame := mustEncode(t, TypeStatus, []byte("fragmented"))
	src := &scriptedSource{chunks: [][]byte{frame[:3], frame[3:7], frame[7:]}}

	pkt, err := NewDecoder(src).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(pkt.Payload) != "fragmented" {
		t.Errorf("payload = %q", pkt.Payload)
	}
}

func TestDecoderNoData(t *testing.T) {
	frame := mustEncode(t, TypeAck, nil)
	src := &scriptedSource{chunks: [][]byte{nil, nil, frame}}
	dec := NewDecoder(src)

	// Two timed-out reads with no marker seen: no data yet, no event.
	for i := 0; i < 2; i++ {
		if _, err := dec.Next(); !errors.Is(err, ErrNoData) {
			t.Fatalf("poll %d: expected ErrNoData, got %v", i, err)
		}
	}

	pkt, err := dec.Next()
	if err != nil {
		t.Fatalf("Next after idle polls failed: %v", err)
	}
	if pkt.Type != TypeAck {
		t.Errorf("packet type = %s, want ack", pkt.Type)
	}
}

func TestDecoderChecksumMismatch(t *testing.T) {
	good := mustEncode(t, TypeMouseReport, []byte{0x01, 0x0A, 0xFB})
	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF

	stream := append(bad, good...)
	dec := NewDecoder(bytes.NewReader(stream))

	_, err := dec.Next()
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChecksumError, got %v", err)
	}
	if ce.Want != good[len(good)-1] || ce.Got != bad[len(bad)-1] {
		t.Errorf("ChecksumError = computed 0x%02X received 0x%02X", ce.Want, ce.Got)
	}

	// The decoder resynchronizes on the next marker unconditionally.
	pkt, err := dec.Next()
	if err != nil {
		t.Fatalf("Next after checksum error failed: %v", err)
	}
	if pkt.Type != TypeMouseReport {
		t.Errorf("recovered packet type = %s, want mouse", pkt.Type)
	}
}

func TestDecoderSingleBitFlips(t *testing.T) {
	payload := []byte{0x02, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	frame := mustEncode(t, TypeKeyboardReport, payload)

	for i := range frame {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), frame...)
			corrupted[i] ^= 1 << bit

			pkt, err := NewDecoder(bytes.NewReader(corrupted)).Next()
			if err == nil && pkt.Type == TypeKeyboardReport && bytes.Equal(pkt.Payload, payload) {
				t.Errorf("flip byte %d bit %d: corruption went undetected", i, bit)
			}
		}
	}
}

// Flipping the same bit in two covered bytes cancels out of the XOR. That
// detection gap is part of the wire format, not a defect; this pins the
// behavior so a stronger checksum is not introduced by accident.
func TestDecoderEvenFlipBlindSpot(t *testing.T) {
	frame := mustEncode(t, TypeKeyboardReport, []byte{0x02, 0x00, 0x04, 0, 0, 0, 0, 0})
	corrupted := append([]byte(nil), frame...)
	corrupted[HeaderSize+4] ^= 0x01
	corrupted[HeaderSize+5] ^= 0x01

	pkt, err := NewDecoder(bytes.NewReader(corrupted)).Next()
	if err != nil {
		t.Fatalf("expected even-count flips to slip through, got %v", err)
	}
	if bytes.Equal(pkt.Payload, frame[HeaderSize:HeaderSize+8]) {
		t.Error("payload unexpectedly intact")
	}
}

func TestDecoderUnknownTypePassesThrough(t *testing.T) {
	unknown := mustEncode(t, MsgType(0x09), []byte{0xDE, 0xAD})
	following := mustEncode(t, TypeAck, nil)
	dec := NewDecoder(bytes.NewReader(append(unknown, following...)))

	pkt, err := dec.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if pkt.Type != MsgType(0x09) {
		t.Errorf("type = %s, want 0x09", pkt.Type)
	}

	// Subsequent decoding is undisturbed.
	if pkt, err = dec.Next(); err != nil || pkt.Type != TypeAck {
		t.Errorf("following packet = %v, %v; want ack", pkt, err)
	}
}

func TestIsRecoverable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "header", err: &HeaderError{Got: 1}, expected: true},
		{name: "body", err: &BodyError{Want: 9, Got: 3}, expected: true},
		{name: "checksum", err: &ChecksumError{Want: 1, Got: 2}, expected: true},
		{name: "eof", err: io.EOF, expected: false},
		{name: "no data", err: ErrNoData, expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecoverable(tc.err); got != tc.expected {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tc.err, got, tc.expected)
			}
		})
	}
}

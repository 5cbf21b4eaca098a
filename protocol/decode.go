package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoData is returned by Next when the source's bounded read elapsed
// before a start marker was seen. The decoder state is unchanged; the
// caller decides whether to retry or give up.
var ErrNoData = errors.New("no data")

// headerTail is the type byte plus the 16-bit length, read after the
// start marker.
const headerTail = HeaderSize - 1

// HeaderError reports a packet whose header could not be read in full.
// The decoder has already resynchronized when it is returned.
type HeaderError struct {
	Got int   // header bytes delivered, of headerTail
	Err error // source error, if the source reported one
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("short header read: got %d of %d bytes", e.Got, headerTail)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// BodyError reports a packet whose payload and checksum could not be read
// in full. The decoder has already resynchronized when it is returned.
type BodyError struct {
	Want int // payload length plus checksum byte
	Got  int
	Err  error // source error, if the source reported one
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("short body read: got %d of %d bytes", e.Got, e.Want)
}

func (e *BodyError) Unwrap() error { return e.Err }

// ChecksumError reports a fully delivered packet whose XOR checksum did
// not match. The payload is discarded, never partially trusted.
type ChecksumError struct {
	Want byte // computed over the received bytes
	Got  byte // received checksum byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: computed 0x%02X, received 0x%02X", e.Want, e.Got)
}

// IsRecoverable reports whether err is a per-packet decode failure. After
// any such error the decoder is already back in its scanning state and the
// next call to Next starts a fresh packet attempt.
func IsRecoverable(err error) bool {
	var (
		he *HeaderError
		be *BodyError
		ce *ChecksumError
	)
	return errors.As(err, &he) || errors.As(err, &be) || errors.As(err, &ce)
}

// Decoder extracts framed packets from a continuous byte stream.
//
// The source's Read is expected to block for at most a bounded interval
// and return the bytes that arrived in that time; returning 0 bytes with a
// nil error means the wait elapsed with nothing received. Serial ports
// opened with a read timeout behave this way. A logically short read while
// a packet is in flight is reported as a recoverable error, never as a
// stuck decoder.
//
// A Decoder is not safe for concurrent use: interleaved reads from two
// callers would corrupt framing.
type Decoder struct {
	r   io.Reader
	one [1]byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads from the source until one packet attempt completes, returning
// the decoded packet or the reason the attempt failed.
//
// Bytes preceding a start marker are discarded silently as line noise.
// Once a marker is seen the decoder commits to the packet: a short header
// read yields *HeaderError, a short body read *BodyError, and a checksum
// mismatch *ChecksumError. All three are recoverable; the following call
// simply scans for the next marker. A start marker byte inside a payload
// is never misread as a new packet because scanning only happens between
// packet attempts.
//
// While scanning, a timed-out read surfaces as ErrNoData and an io.EOF
// propagates as is; neither consumes an event. Whether any other source
// error is fatal is the transport's call, so it is returned unwrapped.
func (d *Decoder) Next() (Packet, error) {
	// Seeking: discard until a start marker.
	for {
		n, err := d.r.Read(d.one[:])
		if n > 0 && d.one[0] == StartByte {
			break
		}
		if err != nil {
			return Packet{}, err
		}
		if n == 0 {
			return Packet{}, ErrNoData
		}
	}

	// ReadingHeader: type byte and little-endian payload length.
	var hdr [headerTail]byte
	if n, err := d.readFull(hdr[:]); n < len(hdr) {
		return Packet{}, &HeaderError{Got: n, Err: err}
	}
	typ := MsgType(hdr[0])
	length := int(hdr[1]) | int(hdr[2])<<8

	// ReadingBody: payload plus trailing checksum byte.
	body := make([]byte, length+1)
	if n, err := d.readFull(body); n < len(body) {
		return Packet{}, &BodyError{Want: len(body), Got: n, Err: err}
	}

	// Validating: recompute the XOR over marker, header and payload.
	payload := body[:length]
	want := Checksum([]byte{StartByte}, hdr[:], payload)
	if got := body[length]; got != want {
		return Packet{}, &ChecksumError{Want: want, Got: got}
	}
	return Packet{Type: typ, Payload: payload}, nil
}

// readFull reads into buf until it is full, the source reports an error,
// or a bounded read delivers nothing. It returns the bytes delivered and
// the source error, if any.
func (d *Decoder) readFull(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := d.r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, nil
}

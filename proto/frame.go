// Package proto implements the datacube wire protocol: a fixed 5-byte
// frame header (1 byte message type, 4 byte big-endian body length)
// followed by a CBOR-encoded body.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType identifies the body carried by a frame. The set is closed;
// any other value on the wire is a protocol violation.
type MessageType byte

const (
	TypeQueryRequest          MessageType = 1
	TypeQueryResponse         MessageType = 2
	TypeListProvidersRequest  MessageType = 5
	TypeListProvidersResponse MessageType = 6
)

// HeaderSize is the fixed size of a frame header.
const HeaderSize = 5

// DefaultMaxBody bounds the body of a single frame unless configured
// otherwise.
const DefaultMaxBody = 1 << 20

func (t MessageType) String() string {
	switch t {
	case TypeQueryRequest:
		return "QueryRequest"
	case TypeQueryResponse:
		return "QueryResponse"
	case TypeListProvidersRequest:
		return "ListProvidersRequest"
	case TypeListProvidersResponse:
		return "ListProvidersResponse"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeQueryRequest, TypeQueryResponse, TypeListProvidersRequest, TypeListProvidersResponse:
		return true
	}
	return false
}

// IsRequest reports whether t is sent from client to server.
func (t MessageType) IsRequest() bool {
	return t == TypeQueryRequest || t == TypeListProvidersRequest
}

var (
	// ErrTruncated means the stream ended inside a frame.
	ErrTruncated = errors.New("truncated frame")
	// ErrFrameTooLarge means the header announced a body above the limit.
	// The body is not read.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnknownMessageType means the header carried a type outside the
	// closed set.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrMalformedBody means the frame was intact but its body could not
	// be decoded into the expected message.
	ErrMalformedBody = errors.New("malformed message body")
)

// IOError wraps a read or write failure of the underlying stream.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// BodyError wraps a body decoding failure. It matches ErrMalformedBody
// with errors.Is.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string        { return fmt.Sprintf("%v: %v", ErrMalformedBody, e.Err) }
func (e *BodyError) Unwrap() error        { return e.Err }
func (e *BodyError) Is(target error) bool { return target == ErrMalformedBody }

// Frame is one self-delimited protocol message.
type Frame struct {
	Type MessageType
	Body []byte
}

// Encode returns the wire form of a frame: exactly 1 + 4 + len(body) bytes.
func Encode(t MessageType, body []byte) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, byte(t))
	}
	if uint64(len(body)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	buf := make([]byte, HeaderSize+len(body))
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// WriteFrame writes a frame to w in a single Write call so concurrent
// writers on distinct connections never interleave partial frames.
func WriteFrame(w io.Writer, f Frame) error {
	buf, err := Encode(f.Type, f.Body)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return &IOError{Op: "write frame", Err: err}
	}
	return nil
}

// ReadFrame reads one frame from r, rejecting bodies above maxBody.
//
// It returns io.EOF only when the stream ends cleanly before the first
// header byte. The type and length are validated from the header before
// any body byte is read.
func ReadFrame(r io.Reader, maxBody uint32) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return Frame{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Frame{}, fmt.Errorf("%w: header", ErrTruncated)
		default:
			return Frame{}, &IOError{Op: "read frame header", Err: err}
		}
	}

	t := MessageType(header[0])
	if !t.Valid() {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownMessageType, header[0])
	}
	length := binary.BigEndian.Uint32(header[1:HeaderSize])
	if length > maxBody {
		return Frame{Type: t}, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrFrameTooLarge, length, maxBody)
	}

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("%w: body", ErrTruncated)
			}
			return Frame{}, &IOError{Op: "read frame body", Err: err}
		}
	}
	return Frame{Type: t, Body: body}, nil
}

// Decoder reads successive frames from one stream.
type Decoder struct {
	r       io.Reader
	maxBody uint32
}

// NewDecoder returns a decoder enforcing maxBody. A zero maxBody means
// DefaultMaxBody.
func NewDecoder(r io.Reader, maxBody uint32) *Decoder {
	if maxBody == 0 {
		maxBody = DefaultMaxBody
	}
	return &Decoder{r: r, maxBody: maxBody}
}

// Decode blocks until a full frame is available.
func (d *Decoder) Decode() (Frame, error) {
	return ReadFrame(d.r, d.maxBody)
}

// WriteMessage marshals msg and writes it as a frame of type t.
func WriteMessage(w io.Writer, t MessageType, msg any) error {
	body, err := Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t, err)
	}
	return WriteFrame(w, Frame{Type: t, Body: body})
}

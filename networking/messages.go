package networking

import (
	"bytes"
	"encoding/binary"

	"go_uftp/constants"
	"go_uftp/networking/token"
)

// Kind tags a frame so control tokens never collide with file content
type Kind uint8

const (
	KindData       Kind = iota + 1 // 1: File or listing bytes
	KindControl                    // 2: One of the reserved tokens
	KindCompressed                 // 3: LZ4 block of file bytes
)

const (
	kindLen  = 1
	seqLen   = 4
	Overhead = kindLen + seqLen
	MaxFrame = constants.MAX_PAYLOAD_SIZE + Overhead
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindControl:
		return "control"
	case KindCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Frame is the logical content of one datagram
type Frame struct {
	Kind    Kind
	Payload []byte
	Seq     uint32 // Trailing 4 bytes, big-endian
}

// DataFrame wraps file bytes
func DataFrame(payload []byte, seq uint32) Frame {
	return Frame{Kind: KindData, Payload: payload, Seq: seq}
}

// ControlFrame wraps a reserved token
func ControlFrame(t token.Token, seq uint32) Frame {
	return Frame{Kind: KindControl, Payload: t.Bytes(), Seq: seq}
}

// Token returns the control token of the frame if it is a control frame
func (f Frame) Token() (token.Token, bool) {
	if f.Kind != KindControl {
		return "", false
	}
	return token.Parse(f.Payload)
}

// Is reports whether the frame is the control token t
func (f Frame) Is(t token.Token) bool {
	tok, ok := f.Token()
	return ok && tok == t
}

// Encode encodes frame to slice of bytes
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > constants.MAX_PAYLOAD_SIZE {
		return nil, ErrPayloadTooLarge
	}
	if err := validate(f); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(f.Payload)+Overhead)
	out = append(out, byte(f.Kind))
	out = append(out, f.Payload...)
	return binary.BigEndian.AppendUint32(out, f.Seq), nil
}

// Decode decodes a datagram to Frame. Payload aliases the given slice.
func Decode(datagram []byte) (Frame, error) {
	if len(datagram) < Overhead {
		return Frame{}, ErrShortFrame
	}
	if len(datagram) > MaxFrame {
		return Frame{}, ErrPayloadTooLarge
	}
	trailer := len(datagram) - seqLen
	f := Frame{
		Kind:    Kind(datagram[0]),
		Payload: datagram[kindLen:trailer],
		Seq:     binary.BigEndian.Uint32(datagram[trailer:]),
	}
	return f, validate(f)
}

func validate(f Frame) error {
	switch f.Kind {
	case KindData:
		return nil
	case KindCompressed:
		if len(f.Payload) == 0 {
			return ErrShortFrame
		}
		return nil
	case KindControl:
		if _, ok := token.Parse(f.Payload); !ok {
			return ErrUnknownToken
		}
		return nil
	default:
		return ErrUnknownKind
	}
}

// IsAck reports whether datagram is a bare acknowledgment
func IsAck(datagram []byte) bool {
	return bytes.Equal(datagram, token.GEN_ACK.Bytes())
}

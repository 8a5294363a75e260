package core

import (
	"encoding/binary"
	"errors"
	"math"
)

// MsgType tags one unit of the binary robot protocol.
type MsgType uint8

const (
	MsgAudio      MsgType = 0x01
	MsgVideo      MsgType = 0x02
	MsgStereoPair MsgType = 0x03
	MsgControl    MsgType = 0xFF
)

func (t MsgType) String() string {
	switch t {
	case MsgAudio:
		return "audio"
	case MsgVideo:
		return "video"
	case MsgStereoPair:
		return "stereo"
	case MsgControl:
		return "control"
	default:
		return "unknown"
	}
}

// FrameHeaderLen is the fixed wire header size:
// type(1) + source(1) + timestamp(8) + length(4).
const FrameHeaderLen = 14

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded unit of the binary protocol. Immutable after
// decode; the hub forwards it, never stores it.
type Frame struct {
	Type      MsgType
	SourceID  uint8
	Timestamp float64
	Payload   []byte
}

// DecodeFrame parses the fixed 14-byte big-endian header and slices
// out the payload. The declared length must fit the remaining bytes.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderLen {
		return Frame{}, ErrMalformedFrame
	}
	length := binary.BigEndian.Uint32(data[10:14])
	if uint64(FrameHeaderLen)+uint64(length) > uint64(len(data)) {
		return Frame{}, ErrMalformedFrame
	}
	return Frame{
		Type:      MsgType(data[0]),
		SourceID:  data[1],
		Timestamp: math.Float64frombits(binary.BigEndian.Uint64(data[2:10])),
		Payload:   data[FrameHeaderLen : FrameHeaderLen+int(length)],
	}, nil
}

// Encode is the exact inverse of DecodeFrame and round-trips
// byte-for-byte.
func (f Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderLen+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = f.SourceID
	binary.BigEndian.PutUint64(buf[2:10], math.Float64bits(f.Timestamp))
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(f.Payload)))
	copy(buf[FrameHeaderLen:], f.Payload)
	return buf
}

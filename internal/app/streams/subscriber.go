package streams

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type SubState int32

const (
	SubStateOk SubState = iota
	SubStateMuted
	SubStateDelete
)

// PacketSink receives forwarded RTP packets from a stream pump.
// *webrtc.TrackLocalStaticRTP satisfies it directly.
type PacketSink interface {
	WriteRTP(pkt *rtp.Packet) error
}

// subscriber is one downstream consumer of an inbound track.
type subscriber struct {
	sink  PacketSink
	state atomic.Int32 // zero value is SubStateOk
}

func newSubscriber(sink PacketSink) *subscriber {
	return &subscriber{sink: sink}
}

func (s *subscriber) State() SubState {
	return SubState(s.state.Load())
}

func (s *subscriber) MarkMuted() {
	s.state.Store(int32(SubStateMuted))
}

func (s *subscriber) MarkDelete() {
	s.state.Store(int32(SubStateDelete))
}

package core

import (
	"context"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// StreamKey addresses one negotiated media transport and the tracks
// it produces: one hub connection, one camera.
type StreamKey struct {
	ConnID   ConnID
	CameraID string
}

// TransportState mirrors the underlying peer connection lifecycle
// without exposing engine-specific enums above the adapter.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RemoteTrack is the borrowed view of an inbound media track.
// Readers never close it; the owning peer session does.
type RemoteTrack interface {
	ID() string
	// Kind is "audio" or "video".
	Kind() string
	ReadRTP() (*rtp.Packet, error)
}

// Transport is the capability surface the signaling layer needs from
// a peer connection engine. Implemented over pion by adapters/rtc;
// tests substitute fakes.
type Transport interface {
	// Start configures internal callbacks and binds the transport
	// lifetime to ctx. Must be called before the offer is applied.
	Start(ctx context.Context) error
	// ApplyOfferAndCreateAnswer sets the remote offer, produces a
	// local answer and waits for ICE gathering to complete.
	ApplyOfferAndCreateAnswer(offerSDP string) (string, error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(cand webrtc.ICECandidateInit) error
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track RemoteTrack))
	// OnStateChange sets a callback for transport state transitions.
	OnStateChange(func(TransportState))
	// Close releases the underlying engine resources. Idempotent.
	Close()
}

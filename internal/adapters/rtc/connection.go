package rtc

import (
	"context"

	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection implements core.Transport over a pion
// PeerConnection.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	key    core.StreamKey
	cancel context.CancelFunc

	onTrack func(ctx context.Context, track core.RemoteTrack)
	onState func(core.TransportState)
}

func NewConfig(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}

func NewWebRTCConnection(cfg webrtc.Configuration, key core.StreamKey) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &WebRTCConnection{pc: pc, key: key}, nil
}

// Factory builds a peer manager TransportFactory over this adapter.
func Factory(stunServers []string) func(key core.StreamKey) (core.Transport, error) {
	cfg := NewConfig(stunServers)
	return func(key core.StreamKey) (core.Transport, error) {
		return NewWebRTCConnection(cfg, key)
	}
}

func (c *WebRTCConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("conn", string(c.key.ConnID)).Str("camera", c.key.CameraID).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("conn", string(c.key.ConnID)).Str("camera", c.key.CameraID).Str("peer_connection_state", s.String()).Msg("peer state")
		if c.onState != nil {
			c.onState(mapState(s))
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("conn", string(c.key.ConnID)).
			Str("camera", c.key.CameraID).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(ctx, &remoteTrack{t: track})
		}
	})

	return nil
}

func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offerSDP string) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	<-gatherComplete

	return c.pc.LocalDescription().SDP, nil
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("conn", string(c.key.ConnID)).Str("camera", c.key.CameraID).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("conn", string(c.key.ConnID)).Str("camera", c.key.CameraID).Msg("closed")
		}
	}
}

// OnTrack sets the application-level callback for remote tracks.
// Must be called before Start.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, track core.RemoteTrack)) {
	c.onTrack = fn
}

// OnStateChange sets the application-level callback for transport
// state transitions. Must be called before Start.
func (c *WebRTCConnection) OnStateChange(fn func(core.TransportState)) {
	c.onState = fn
}

func mapState(s webrtc.PeerConnectionState) core.TransportState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return core.TransportNew
	case webrtc.PeerConnectionStateConnecting:
		return core.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return core.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.TransportFailed
	default:
		return core.TransportClosed
	}
}

// remoteTrack adapts *webrtc.TrackRemote to the borrowed view the
// stream registry hands out.
type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r *remoteTrack) ID() string   { return r.t.ID() }
func (r *remoteTrack) Kind() string { return r.t.Kind().String() }

func (r *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

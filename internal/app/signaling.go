package app

import (
	"context"
	"fmt"

	"github.com/flathead/streamhub/internal/app/peers"
	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Coordinator runs the offer/answer/ICE exchange per (connection,
// camera) key. Pure protocol logic; transport creation is delegated
// to the peer manager.
type Coordinator struct {
	Peers *peers.Manager
}

func NewCoordinator(pm *peers.Manager) *Coordinator {
	return &Coordinator{Peers: pm}
}

// HandleOffer creates (or replaces) the transport for the key,
// applies the remote offer and returns the local answer SDP. On any
// failure no half-created session remains registered.
func (c *Coordinator) HandleOffer(ctx context.Context, connID core.ConnID, cameraID, offerSDP string) (string, error) {
	key := core.StreamKey{ConnID: connID, CameraID: cameraID}

	sess, err := c.Peers.CreateOrReplace(ctx, key)
	if err != nil {
		return "", err
	}
	sess.SetOffering()

	answer, err := sess.Transport().ApplyOfferAndCreateAnswer(offerSDP)
	if err != nil {
		c.Peers.Close(key)
		return "", fmt.Errorf("apply offer: %w", err)
	}
	sess.SetAnswered()
	log.Info().Str("module", "app.signaling").Str("conn", string(connID)).Str("camera", cameraID).Msg("answer created")
	return answer, nil
}

// HandleCandidate applies a remote ICE candidate. Candidates that
// arrive before a session exists for the key are dropped with a
// warning, not buffered. AddICECandidate failures are logged only;
// ICE is expected to retry.
func (c *Coordinator) HandleCandidate(connID core.ConnID, cameraID string, cand webrtc.ICECandidateInit) {
	key := core.StreamKey{ConnID: connID, CameraID: cameraID}
	sess, ok := c.Peers.Get(key)
	if !ok {
		log.Warn().Str("module", "app.signaling").Str("conn", string(connID)).Str("camera", cameraID).Msg("candidate for unknown peer session, dropped")
		return
	}
	if err := sess.Transport().AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "app.signaling").Str("conn", string(connID)).Str("camera", cameraID).Msg("add ice candidate")
	}
}

// HandleDisconnect closes the session for one camera. No-op if it
// does not exist.
func (c *Coordinator) HandleDisconnect(connID core.ConnID, cameraID string) {
	c.Peers.Close(core.StreamKey{ConnID: connID, CameraID: cameraID})
}

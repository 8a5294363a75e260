package app

import (
	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

// FrameSink receives every valid media payload for recording.
// Implemented by the persistence collaborator, not by the hub.
type FrameSink interface {
	Persist(robotID domain.RobotID, sourceID uint8, payload []byte)
}

// SnapshotSink keeps the latest video payload per camera for
// on-demand JPEG retrieval. Also an external collaborator.
type SnapshotSink interface {
	Update(robotID domain.RobotID, cameraID uint8, payload []byte)
}

// Router consumes raw frames from robot connections and fans them out
// to the robot's viewer room. Routing is synchronous: a frame is
// either fully routed or fully dropped.
type Router struct {
	Registry *Registry
	Rooms    core.RoomFactory
	Policy   Policy

	// Optional collaborators; nil means no recording/snapshots.
	Frames    FrameSink
	Snapshots SnapshotSink
}

// Route decodes and forwards one raw frame. Frames from unknown or
// non-robot connections are ignored silently: late frames after a
// disconnect are expected, not a fault.
func (r *Router) Route(connID core.ConnID, raw []byte) {
	robotID, ok := r.Registry.RobotOf(connID)
	if !ok {
		return
	}

	frame, err := core.DecodeFrame(raw)
	if err != nil {
		// Transport noise: drop without touching stats.
		log.Debug().Str("module", "app.router").Str("conn", string(connID)).Int("len", len(raw)).Msg("malformed frame dropped")
		return
	}

	r.Registry.RecordTraffic(connID, frame.Type, len(raw))

	room := r.Rooms.GetOrCreate(domain.RobotViewersRoom(robotID))
	res := room.Broadcast(connID, raw)
	for _, slow := range res.Dropped {
		if r.Policy == nil {
			continue
		}
		switch r.Policy.OnBackPressure(room, slow) {
		case KickViewer:
			log.Warn().Str("module", "app.router").Str("conn", string(slow)).Msg("kicking slow viewer")
			r.Registry.Cancel(slow)
		case DropFrame, NoAction:
		}
	}

	switch frame.Type {
	case core.MsgAudio, core.MsgVideo, core.MsgStereoPair:
		if r.Frames != nil {
			r.Frames.Persist(robotID, frame.SourceID, frame.Payload)
		}
	}
	if frame.Type == core.MsgVideo && r.Snapshots != nil {
		r.Snapshots.Update(robotID, frame.SourceID, frame.Payload)
	}
}

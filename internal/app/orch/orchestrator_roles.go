package orch

import (
	"errors"
	"time"

	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRobotNotFound = errors.New("robot not found")

// RobotInfo is the roster entry a viewer receives on join.
type RobotInfo struct {
	RobotID      domain.RobotID      `json:"robotId"`
	Capabilities domain.Capabilities `json:"capabilities"`
	ConnectedAt  time.Time           `json:"connected_at"`
}

// HandleHello identifies a connection as a robot and puts it in its
// command room.
func (o *Orchestrator) HandleHello(id core.ConnID, rawRobotID string, caps domain.Capabilities) (domain.RobotID, error) {
	robotID, err := domain.NewRobotID(rawRobotID)
	if err != nil {
		return "", err
	}
	if err := o.Registry.SetRobot(id, robotID, caps); err != nil {
		return "", err
	}
	o.joinRoom(id, domain.RobotRoom(robotID))
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("robot", string(robotID)).Msg("robot hello")
	return robotID, nil
}

// HandleJoin identifies a connection as a viewer, joins the global
// viewers room and, when a robot is named, that robot's fan-out room.
// Returns the current robot roster.
func (o *Orchestrator) HandleJoin(id core.ConnID, robotID domain.RobotID) ([]RobotInfo, error) {
	if err := o.Registry.SetViewer(id); err != nil {
		return nil, err
	}
	o.joinRoom(id, domain.ViewersRoom)
	if robotID != "" {
		o.joinRoom(id, domain.RobotViewersRoom(robotID))
	}
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("robot", string(robotID)).Msg("viewer joined")
	return o.Roster(), nil
}

// Roster lists every connected robot with its capabilities.
func (o *Orchestrator) Roster() []RobotInfo {
	robots := o.Registry.Robots()
	out := make([]RobotInfo, 0, len(robots))
	for _, c := range robots {
		out = append(out, RobotInfo{
			RobotID:      c.RobotID,
			Capabilities: c.Caps,
			ConnectedAt:  c.ConnectedAt,
		})
	}
	return out
}

// CommandTargets resolves the members of a robot's command room.
// The relay itself stays in the signal adapter; the payload is
// forwarded verbatim.
func (o *Orchestrator) CommandTargets(robotID domain.RobotID) ([]core.ClientSession, error) {
	if _, ok := o.Registry.FindByRobotID(robotID); !ok {
		return nil, ErrRobotNotFound
	}
	members := o.Registry.MembersOfRoom(domain.RobotRoom(robotID))
	out := make([]core.ClientSession, 0, len(members))
	for _, m := range members {
		if m.Session != nil {
			out = append(out, m.Session)
		}
	}
	return out, nil
}

// Status returns the connection snapshot for a robot, or a structured
// not-found error.
func (o *Orchestrator) Status(robotID domain.RobotID) (StatusResult, error) {
	snap, ok := o.Registry.FindByRobotID(robotID)
	if !ok {
		return StatusResult{}, ErrRobotNotFound
	}
	return StatusResult{
		RobotID:      snap.RobotID,
		Capabilities: snap.Caps,
		Stats:        snap.Stats,
		ConnectedAt:  snap.ConnectedAt,
		PeerSessions: o.Peers.CountForClient(snap.ID),
	}, nil
}

type StatusResult struct {
	RobotID      domain.RobotID      `json:"robotId"`
	Capabilities domain.Capabilities `json:"capabilities"`
	Stats        domain.TrafficStats `json:"stats"`
	ConnectedAt  time.Time           `json:"connected_at"`
	PeerSessions int                 `json:"peer_sessions"`
}

func (o *Orchestrator) joinRoom(id core.ConnID, name domain.RoomName) {
	sess, ok := o.Registry.Session(id)
	if !ok {
		return
	}
	o.Registry.JoinRoom(id, name)
	o.Rooms.GetOrCreate(name).AddMember(id, sess)
}

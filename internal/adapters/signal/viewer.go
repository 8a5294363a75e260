package signal

import (
	"encoding/json"
	"errors"

	"github.com/flathead/streamhub/internal/app/orch"
	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *StreamWSController) handleJoin(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	type joinPayload struct {
		Type    string `json:"type"`
		RobotID string `json:"robotId,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "", "bad_payload")
		return
	}

	roster, err := ctl.Orch.HandleJoin(sid, domain.RobotID(p.RobotID))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(sid)).Msg("join rejected")
		ctl.sendError(conn, "", err.Error())
		return
	}

	resp := struct {
		Type   string           `json:"type"`
		Robots []orch.RobotInfo `json:"robots"`
	}{
		Type:   "roster",
		Robots: roster,
	}
	ctl.sendJSON(conn, resp)
}

// handleCommand relays the payload verbatim into the robot's command
// room. The hub never interprets the command itself.
func (ctl *StreamWSController) handleCommand(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	if !ctl.limiter.Allow(sid) {
		ctl.sendError(conn, "", "rate_limited")
		return
	}

	type commandPayload struct {
		Type    string `json:"type"`
		RobotID string `json:"robotId"`
	}
	var p commandPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RobotID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad command payload")
		ctl.sendError(conn, "", "bad_payload")
		return
	}

	targets, err := ctl.Orch.CommandTargets(domain.RobotID(p.RobotID))
	if err != nil {
		if errors.Is(err, orch.ErrRobotNotFound) {
			ctl.sendError(conn, "", "robot not found")
			return
		}
		ctl.sendError(conn, "", err.Error())
		return
	}
	for _, t := range targets {
		_ = t.Signal().TrySend(data)
	}
	log.Debug().Str("module", "signal").Str("conn", string(sid)).Str("robot", p.RobotID).Int("targets", len(targets)).Msg("command relayed")
}

func (ctl *StreamWSController) handleStatus(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	type statusPayload struct {
		Type    string `json:"type"`
		RobotID string `json:"robotId"`
	}
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad status payload")
		ctl.sendError(conn, "", "bad_payload")
		return
	}

	st, err := ctl.Orch.Status(domain.RobotID(p.RobotID))
	if err != nil {
		ctl.sendError(conn, "", "robot not found")
		return
	}

	resp := struct {
		Type   string            `json:"type"`
		Status orch.StatusResult `json:"status"`
	}{
		Type:   "status",
		Status: st,
	}
	ctl.sendJSON(conn, resp)
}

package signal

import (
	"encoding/json"

	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *StreamWSController) handleHello(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	type helloPayload struct {
		Type         string              `json:"type"`
		RobotID      string              `json:"robotId"`
		Capabilities domain.Capabilities `json:"capabilities"`
	}
	var p helloPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad hello payload")
		ctl.sendError(conn, "", "bad_payload")
		return
	}

	robotID, err := ctl.Orch.HandleHello(sid, p.RobotID, p.Capabilities)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(sid)).Msg("hello rejected")
		ctl.sendError(conn, "", err.Error())
		return
	}

	resp := struct {
		Type    string         `json:"type"`
		RobotID domain.RobotID `json:"robotId"`
	}{
		Type:    "welcome",
		RobotID: robotID,
	}
	ctl.sendJSON(conn, resp)
}

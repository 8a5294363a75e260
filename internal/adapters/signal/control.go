package signal

import "github.com/flathead/streamhub/internal/app"

func (ctl *StreamWSController) handlePing(
	conn *WsStreamConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *StreamWSController) handleStats(
	conn *WsStreamConn,
) {
	resp := struct {
		Type  string        `json:"type"`
		Stats app.Aggregate `json:"stats"`
	}{
		Type:  "stats",
		Stats: ctl.Orch.Stats.Snapshot(),
	}
	ctl.sendJSON(conn, resp)
}

package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *StreamWSController) writePump(ctx context.Context, c *WsStreamConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case m, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			mt := websocket.TextMessage
			if m.binary {
				mt = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(mt, m.data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *StreamWSController) readPump(ctx context.Context, sid core.ConnID, c *WsStreamConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("readPump closing")
		c.Close()
		ctl.handleGone(sid)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("readPump ctx done")
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(sid)).Msg("readPump read error")
				return
			}
			if mt == websocket.BinaryMessage {
				// Binary frames route synchronously on this goroutine;
				// per-connection ordering falls out of that.
				ctl.Orch.Router.Route(sid, data)
				continue
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

// handleGone runs the disconnect cascade and, if the connection was a
// robot, notifies its viewers once the registry mutation is done.
func (ctl *StreamWSController) handleGone(sid core.ConnID) {
	snap, ok := ctl.Orch.Disconnect(sid)
	if !ok {
		return
	}
	if snap.RobotID != "" {
		ctl.BroadcastRoom(domain.RobotViewersRoom(snap.RobotID), struct {
			Type    string         `json:"type"`
			RobotID domain.RobotID `json:"robotId"`
		}{
			Type:    "robot-disconnected",
			RobotID: snap.RobotID,
		})
	}
}

func (ctl *StreamWSController) handleSignal(sid core.ConnID, c *WsStreamConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "", "bad_payload")
		return
	}

	switch env.Type {
	case "hello":
		ctl.handleHello(sid, c, data)
	case "join":
		ctl.handleJoin(sid, c, data)
	case "command":
		ctl.handleCommand(sid, c, data)
	case "status":
		ctl.handleStatus(sid, c, data)
	case "offer":
		ctl.handleOffer(sid, c, data)
	case "ice-candidate":
		ctl.handleCandidate(sid, c, data)
	case "disconnect-camera":
		ctl.handleDisconnectCamera(sid, c, data)
	case "stats":
		ctl.handleStats(c)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *StreamWSController) sendJSON(sc core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = sc.TrySend(b)
}

func (ctl *StreamWSController) sendError(sc core.SignalConnection, cameraID, msg string) {
	resp := struct {
		Type     string `json:"type"`
		CameraID string `json:"cameraId,omitempty"`
		Error    string `json:"error"`
	}{
		Type:     "error",
		CameraID: cameraID,
		Error:    msg,
	}
	ctl.sendJSON(sc, resp)
}

package signal

import (
	"context"
	"encoding/json"

	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func (ctl *StreamWSController) handleOffer(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	type offerPayload struct {
		Type     string     `json:"type"`
		CameraID string     `json:"cameraId"`
		Offer    sdpPayload `json:"offer"`
	}
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CameraID == "" || p.Offer.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, p.CameraID, "bad_payload")
		return
	}

	answer, err := ctl.Orch.Signaling.HandleOffer(context.Background(), sid, p.CameraID, p.Offer.SDP)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(sid)).Str("camera", p.CameraID).Msg("offer failed")
		ctl.sendError(conn, p.CameraID, err.Error())
		return
	}

	resp := struct {
		Type     string     `json:"type"`
		CameraID string     `json:"cameraId"`
		Answer   sdpPayload `json:"answer"`
	}{
		Type:     "answer",
		CameraID: p.CameraID,
		Answer:   sdpPayload{Type: "answer", SDP: answer},
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *StreamWSController) handleCandidate(
	sid core.ConnID,
	_ *WsStreamConn,
	data []byte,
) {
	type candidatePayload struct {
		Type      string `json:"type"`
		CameraID  string `json:"cameraId"`
		Candidate struct {
			Candidate     string `json:"candidate"`
			SDPMid        string `json:"sdpMid"`
			SDPMLineIndex uint16 `json:"sdpMLineIndex"`
		} `json:"candidate"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate.Candidate,
	}
	if p.Candidate.SDPMid != "" {
		cand.SDPMid = &p.Candidate.SDPMid
	}
	cand.SDPMLineIndex = &p.Candidate.SDPMLineIndex

	ctl.Orch.Signaling.HandleCandidate(sid, p.CameraID, cand)
}

func (ctl *StreamWSController) handleDisconnectCamera(
	sid core.ConnID,
	conn *WsStreamConn,
	data []byte,
) {
	type disconnectPayload struct {
		Type     string `json:"type"`
		CameraID string `json:"cameraId"`
	}
	var p disconnectPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CameraID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad disconnect-camera payload")
		ctl.sendError(conn, "", "bad_payload")
		return
	}
	ctl.Orch.Signaling.HandleDisconnect(sid, p.CameraID)
}

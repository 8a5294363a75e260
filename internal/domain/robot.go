// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxRobotIDLen = 36

var (
	ErrRobotIDEmpty   = errors.New("robot id empty")
	ErrRobotIDTooLong = errors.New("robot id too long")
)

type RobotID string

// NewRobotID validates the application-level robot identifier coming
// off the wire before it enters any registry map.
func NewRobotID(raw string) (RobotID, error) {
	if len(raw) == 0 {
		return "", ErrRobotIDEmpty
	}
	if len(raw) > MaxRobotIDLen {
		return "", ErrRobotIDTooLong
	}
	return RobotID(raw), nil
}

// Capabilities is the stream surface a robot declares in its hello.
type Capabilities struct {
	Audio         bool `json:"audio"`
	Video         bool `json:"video"`
	AudioChannels int  `json:"audioChannels"`
	VideoChannels int  `json:"videoChannels"`
}

// TrafficStats is the mutable per-connection counter block.
// Mutated only through the registry's RecordTraffic path.
type TrafficStats struct {
	AudioFrames   uint64 `json:"audio_frames"`
	VideoFrames   uint64 `json:"video_frames"`
	BytesReceived uint64 `json:"bytes_received"`
}

package app

import "github.com/flathead/streamhub/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickViewer
)

// Policy decides what happens to a viewer whose send queue stayed
// full during a fan-out.
type Policy interface {
	OnBackPressure(room core.RoomService, viewer core.ConnID) BackpressureAction
}

// SimplePolicy disconnects slow viewers; a stalled consumer must not
// hold frames back for the rest of the room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, viewer core.ConnID) BackpressureAction {
	return KickViewer
}

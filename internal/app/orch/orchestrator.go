package orch

import (
	"context"

	"github.com/flathead/streamhub/internal/app"
	"github.com/flathead/streamhub/internal/app/peers"
	"github.com/flathead/streamhub/internal/app/streams"
	"github.com/flathead/streamhub/internal/core"
	"github.com/rs/zerolog/log"
)

// Orchestrator wires the registry, rooms, peer sessions and streams
// together and owns the cross-component flows: identify, join,
// command relay and the disconnect cascade.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     core.RoomFactory
	Peers     *peers.Manager
	Streams   *streams.Registry
	Router    *app.Router
	Signaling *app.Coordinator
	Stats     *app.Aggregator
}

// Connect registers a fresh, role-less connection.
func (o *Orchestrator) Connect(id core.ConnID, sess core.ClientSession, cancel context.CancelFunc) {
	o.Registry.Register(id, sess, cancel)
}

// Disconnect runs the full cascade for a closing connection: every
// peer session is closed, every room membership dropped, then the
// registry entry is removed. The final snapshot is returned so the
// caller can notify observers after the mutation is complete.
func (o *Orchestrator) Disconnect(id core.ConnID) (app.ConnectionSnapshot, bool) {
	closed := o.Peers.CloseAllForClient(id)

	for _, name := range o.Registry.LeaveAllRooms(id) {
		if room, ok := o.Rooms.Get(name); ok {
			room.RemoveMember(id)
		}
	}

	snap, ok := o.Registry.Unregister(id)
	if !ok {
		return app.ConnectionSnapshot{}, false
	}
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("role", snap.Role).Int("sessions_closed", closed).Msg("connection disconnected")
	return snap, true
}

package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrRoleConflict      = errors.New("role already assigned")
)

// Connection is the registry-owned record of one live socket.
type Connection struct {
	ID          core.ConnID
	Role        domain.Role
	RobotID     domain.RobotID
	Caps        domain.Capabilities
	Rooms       map[domain.RoomName]struct{}
	Stats       domain.TrafficStats
	ConnectedAt time.Time
	Session     core.ClientSession
	Cancel      context.CancelFunc
}

// ConnectionSnapshot is a read-only copy handed to status queries and
// the stats aggregator. No transport fields.
type ConnectionSnapshot struct {
	ID          core.ConnID         `json:"id"`
	Role        string              `json:"role"`
	RobotID     domain.RobotID      `json:"robot_id,omitempty"`
	Caps        domain.Capabilities `json:"capabilities"`
	Rooms       []domain.RoomName   `json:"rooms"`
	Stats       domain.TrafficStats `json:"stats"`
	ConnectedAt time.Time           `json:"connected_at"`
}

type MemberSnap struct {
	ID      core.ConnID
	Session core.ClientSession
}

// Registry tracks every live connection. It is the only mutation path
// for per-connection stats; everything happens under one mutex.
type Registry struct {
	mu      sync.RWMutex
	conns   map[core.ConnID]*Connection
	byRobot map[domain.RobotID]core.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[core.ConnID]*Connection),
		byRobot: make(map[domain.RobotID]core.ConnID),
	}
}

func (r *Registry) Register(id core.ConnID, sess core.ClientSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &Connection{
		ID:          id,
		Rooms:       make(map[domain.RoomName]struct{}),
		ConnectedAt: time.Now(),
		Session:     sess,
		Cancel:      cancel,
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
}

// SetRobot assigns the robot role and indexes the connection by its
// application-level id. The role is immutable once set; a repeated
// hello from the same connection only refreshes capabilities.
func (r *Registry) SetRobot(id core.ConnID, robotID domain.RobotID, caps domain.Capabilities) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if c.Role != domain.RoleNone && c.Role != domain.RoleRobot {
		return ErrRoleConflict
	}
	if prev, ok := r.byRobot[robotID]; ok && prev != id {
		log.Warn().Str("module", "app.registry").Str("robot", string(robotID)).Str("old_conn", string(prev)).Str("new_conn", string(id)).Msg("robot id re-registered on a new connection")
	}
	c.Role = domain.RoleRobot
	c.RobotID = robotID
	c.Caps = caps
	r.byRobot[robotID] = id
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("robot", string(robotID)).Msg("robot registered")
	return nil
}

func (r *Registry) SetViewer(id core.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if c.Role != domain.RoleNone && c.Role != domain.RoleViewer {
		return ErrRoleConflict
	}
	c.Role = domain.RoleViewer
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("viewer registered")
	return nil
}

// Unregister removes the connection from all registry maps and
// returns its final snapshot so the caller can finish the cascade
// (room cleanup, notifications).
func (r *Registry) Unregister(id core.ConnID) (ConnectionSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ConnectionSnapshot{}, false
	}
	delete(r.conns, id)
	if c.RobotID != "" && r.byRobot[c.RobotID] == id {
		delete(r.byRobot, c.RobotID)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
	return snapshotLocked(c), true
}

func (r *Registry) JoinRoom(id core.ConnID, name domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.Rooms[name] = struct{}{}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(name)).Msg("joined room")
	return true
}

// LeaveAllRooms clears the membership set and returns the rooms the
// connection was in, so the caller can detach it from each.
func (r *Registry) LeaveAllRooms(id core.ConnID) []domain.RoomName {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomName, 0, len(c.Rooms))
	for name := range c.Rooms {
		out = append(out, name)
	}
	c.Rooms = make(map[domain.RoomName]struct{})
	return out
}

// RecordTraffic is the only stats mutation path. Atomic with respect
// to concurrent frames on the same connection.
func (r *Registry) RecordTraffic(id core.ConnID, t core.MsgType, n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	switch t {
	case core.MsgAudio, core.MsgStereoPair:
		c.Stats.AudioFrames++
	case core.MsgVideo:
		c.Stats.VideoFrames++
	}
	c.Stats.BytesReceived += uint64(n)
	return true
}

func (r *Registry) Find(id core.ConnID) (ConnectionSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return ConnectionSnapshot{}, false
	}
	return snapshotLocked(c), true
}

// FindByRobotID resolves the application-level robot identifier to
// its current connection.
func (r *Registry) FindByRobotID(robotID domain.RobotID) (ConnectionSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRobot[robotID]
	if !ok {
		return ConnectionSnapshot{}, false
	}
	c, ok := r.conns[id]
	if !ok {
		return ConnectionSnapshot{}, false
	}
	return snapshotLocked(c), true
}

// RobotOf is the router hot-path lookup: robot id only, and only if
// the connection actually is a robot.
func (r *Registry) RobotOf(id core.ConnID) (domain.RobotID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok || c.Role != domain.RoleRobot {
		return "", false
	}
	return c.RobotID, true
}

func (r *Registry) Session(id core.ConnID) (core.ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok || c.Session == nil {
		return nil, false
	}
	return c.Session, true
}

func (r *Registry) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if c.Cancel != nil {
		c.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}

func (r *Registry) MembersOfRoom(name domain.RoomName) []MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberSnap, 0, len(r.conns))
	for id, c := range r.conns {
		if _, ok := c.Rooms[name]; ok {
			out = append(out, MemberSnap{ID: id, Session: c.Session})
		}
	}
	return out
}

func (r *Registry) All() []ConnectionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionSnapshot, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, snapshotLocked(c))
	}
	return out
}

func (r *Registry) Robots() []ConnectionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionSnapshot, 0, len(r.byRobot))
	for _, id := range r.byRobot {
		if c, ok := r.conns[id]; ok {
			out = append(out, snapshotLocked(c))
		}
	}
	return out
}

func snapshotLocked(c *Connection) ConnectionSnapshot {
	rooms := make([]domain.RoomName, 0, len(c.Rooms))
	for name := range c.Rooms {
		rooms = append(rooms, name)
	}
	return ConnectionSnapshot{
		ID:          c.ID,
		Role:        c.Role.String(),
		RobotID:     c.RobotID,
		Caps:        c.Caps,
		Rooms:       rooms,
		Stats:       c.Stats,
		ConnectedAt: c.ConnectedAt,
	}
}

package core

import "github.com/flathead/streamhub/internal/domain"

// ConnID is the transport-assigned connection identifier, stable for
// the socket's lifetime. Distinct from domain.RobotID.
type ConnID string

// SignalConnection abstracts the hub side of a client socket.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a JSON control message without blocking.
	TrySend(data []byte) error
	// TrySendBinary queues an encoded frame without blocking.
	TrySendBinary(data []byte) error
	Close()
}

// ClientSession is what a room stores and fans out to.
type ClientSession interface {
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the router.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int
	Members() []ConnID

	AddMember(id ConnID, cs ClientSession)
	RemoveMember(id ConnID)
	Broadcast(from ConnID, data []byte) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type RoomFactory interface {
	GetOrCreate(name domain.RoomName) RoomService
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}

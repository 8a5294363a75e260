package core

import (
	"sync"

	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name domain.RoomName
	mu   sync.RWMutex
	byID map[ConnID]ClientSession
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name: name,
		byID: make(map[ConnID]ClientSession),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *roomImpl) Members() []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

func (r *roomImpl) AddMember(id ConnID, cs ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = cs
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(id)).Msg("member added")
}

func (r *roomImpl) RemoveMember(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(id)).Msg("member removed")
}

// Broadcast fans data out to every member except the sender.
// Members whose send queue is full are reported, not blocked on.
func (r *roomImpl) Broadcast(from ConnID, data []byte) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, cs := range r.byID {
		if id == from {
			continue
		}
		if err := cs.Signal().TrySendBinary(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

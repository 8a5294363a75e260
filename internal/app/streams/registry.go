package streams

import (
	"context"
	"sync"

	"github.com/flathead/streamhub/internal/core"
	"github.com/rs/zerolog/log"
)

type EventType int

const (
	StreamAdded EventType = iota
	StreamRemoved
)

// Event is a one-way notification emitted after the registry mutated.
type Event struct {
	Type    EventType
	Key     core.StreamKey
	TrackID string
}

// Registry is the shared table of live inbound tracks, addressable by
// (connection, camera). The peer manager writes; external sinks read
// and subscribe. Track handles are borrowed, never closed by readers.
type Registry struct {
	mu      sync.RWMutex
	streams map[core.StreamKey]*stream

	obsMu     sync.RWMutex
	observers []func(Event)
}

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[core.StreamKey]*stream),
	}
}

// OnChange registers an observer for added/removed events. Observers
// run on the mutating goroutine and must not block.
func (r *Registry) OnChange(fn func(Event)) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Registry) notify(ev Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, fn := range r.observers {
		fn(ev)
	}
}

// Register binds an inbound track under key and starts its pump.
// A stream already present under the same key is stopped first.
func (r *Registry) Register(ctx context.Context, key core.StreamKey, track core.RemoteTrack) {
	logger := log.With().
		Str("module", "streams").
		Str("conn", string(key.ConnID)).
		Str("camera", key.CameraID).
		Logger()

	pumpCtx, cancel := context.WithCancel(ctx)
	s := newStream(key, track, cancel)

	replaced := false
	var replacedID string
	r.mu.Lock()
	if old, ok := r.streams[key]; ok {
		logger.Info().Msg("replacing existing stream for key")
		old.markAllDelete()
		if old.cancel != nil {
			old.cancel()
		}
		replaced = true
		replacedID = old.track.ID()
	}
	r.streams[key] = s
	r.mu.Unlock()

	logger.Info().Str("track_id", track.ID()).Msg("starting stream pump")
	go s.loop(pumpCtx, &logger)

	// Observers see the replaced stream go away before its successor.
	if replaced {
		r.notify(Event{Type: StreamRemoved, Key: key, TrackID: replacedID})
	}
	r.notify(Event{Type: StreamAdded, Key: key, TrackID: track.ID()})
}

// Remove stops the pump and drops the stream. No-op for unknown keys.
func (r *Registry) Remove(key core.StreamKey) {
	r.mu.Lock()
	s, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.markAllDelete()
	if s.cancel != nil {
		s.cancel()
	}
	r.notify(Event{Type: StreamRemoved, Key: key, TrackID: s.track.ID()})
}

// RemoveAllForConn drops every stream owned by one connection.
func (r *Registry) RemoveAllForConn(id core.ConnID) {
	r.mu.RLock()
	keys := make([]core.StreamKey, 0, len(r.streams))
	for key := range r.streams {
		if key.ConnID == id {
			keys = append(keys, key)
		}
	}
	r.mu.RUnlock()
	for _, key := range keys {
		r.Remove(key)
	}
}

// Get returns the live track for key, if any. The handle is borrowed.
func (r *Registry) Get(key core.StreamKey) (core.RemoteTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	if !ok {
		return nil, false
	}
	return s.track, true
}

// Has reports whether a stream exists for key.
func (r *Registry) Has(key core.StreamKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.streams[key]
	return ok
}

// Subscribe attaches a packet sink to the stream under key.
func (r *Registry) Subscribe(key core.StreamKey, id string, sink PacketSink) bool {
	r.mu.RLock()
	s, ok := r.streams[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.addSubscriber(id, newSubscriber(sink))
	return true
}

// Unsubscribe marks a subscriber for removal; the pump drops it on
// the next packet.
func (r *Registry) Unsubscribe(key core.StreamKey, id string) {
	r.mu.RLock()
	s, ok := r.streams[key]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s.mu.RLock()
	sub, ok := s.subs[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	sub.MarkDelete()
}

// Count reports the number of live streams.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

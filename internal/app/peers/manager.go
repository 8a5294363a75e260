package peers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flathead/streamhub/internal/app/streams"
	"github.com/flathead/streamhub/internal/core"
	"github.com/rs/zerolog/log"
)

// TransportFactory builds a fresh transport for a session. Wired to
// the pion adapter in production, to fakes in tests.
type TransportFactory func(key core.StreamKey) (core.Transport, error)

// Manager owns every live peer session, keyed by (connection, camera).
// It enforces at-most-one-transport-per-key and guarantees teardown
// exactly once under every exit path.
type Manager struct {
	mu       sync.RWMutex
	sessions map[core.StreamKey]*Session

	factory TransportFactory
	streams *streams.Registry
}

func NewManager(factory TransportFactory, reg *streams.Registry) *Manager {
	return &Manager{
		sessions: make(map[core.StreamKey]*Session),
		factory:  factory,
		streams:  reg,
	}
}

// CreateOrReplace builds a new session for key, closing any existing
// one first so callers never have to check. The session is registered
// only after the transport started cleanly.
func (m *Manager) CreateOrReplace(ctx context.Context, key core.StreamKey) (*Session, error) {
	if m.Close(key) {
		log.Info().Str("module", "peers").Str("conn", string(key.ConnID)).Str("camera", key.CameraID).Msg("replaced existing peer session")
	}

	t, err := m.factory(key)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	sess := &Session{
		Key:       key,
		CreatedAt: time.Now(),
		transport: t,
	}

	t.OnTrack(func(trackCtx context.Context, track core.RemoteTrack) {
		if track.Kind() != "video" {
			log.Info().Str("module", "peers").Str("conn", string(key.ConnID)).Str("camera", key.CameraID).Str("kind", track.Kind()).Msg("ignoring non-video track")
			return
		}
		m.streams.Register(trackCtx, key, track)
	})

	t.OnStateChange(func(st core.TransportState) {
		log.Info().Str("module", "peers").Str("conn", string(key.ConnID)).Str("camera", key.CameraID).Str("state", st.String()).Msg("transport state")
		switch st {
		case core.TransportConnected:
			sess.setState(StateConnected)
		case core.TransportFailed:
			sess.setState(StateFailed)
			m.Close(key)
		case core.TransportDisconnected:
			sess.setState(StateDisconnected)
			m.Close(key)
		}
	})

	if err := t.Start(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("start transport: %w", err)
	}

	m.mu.Lock()
	m.sessions[key] = sess
	m.mu.Unlock()
	log.Info().Str("module", "peers").Str("conn", string(key.ConnID)).Str("camera", key.CameraID).Msg("peer session created")
	return sess, nil
}

// Close tears a session down: streams first, then the transport,
// then the map entry is already gone. Idempotent; closing an unknown
// key is a no-op. Reports whether a live session was closed.
func (m *Manager) Close(key core.StreamKey) bool {
	m.mu.Lock()
	sess, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	if sess.State() != StateFailed && sess.State() != StateDisconnected {
		sess.setState(StateClosed)
	}
	m.streams.Remove(key)
	sess.transport.Close()
	log.Info().Str("module", "peers").Str("conn", string(key.ConnID)).Str("camera", key.CameraID).Msg("peer session closed")
	return true
}

// CloseAllForClient closes every session owned by one connection.
// Used on disconnect; no session outlives its owning connection.
func (m *Manager) CloseAllForClient(id core.ConnID) int {
	m.mu.RLock()
	keys := make([]core.StreamKey, 0, len(m.sessions))
	for key := range m.sessions {
		if key.ConnID == id {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()
	for _, key := range keys {
		m.Close(key)
	}
	return len(keys)
}

func (m *Manager) Get(key core.StreamKey) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	return sess, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) CountForClient(id core.ConnID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.sessions {
		if key.ConnID == id {
			n++
		}
	}
	return n
}

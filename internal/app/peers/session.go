package peers

import (
	"sync/atomic"
	"time"

	"github.com/flathead/streamhub/internal/core"
)

// State tracks one peer session through signaling and transport life.
type State int32

const (
	StateNew State = iota
	StateOffering
	StateAnswered
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOffering:
		return "offering"
	case StateAnswered:
		return "answered"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one negotiated media transport for one (connection,
// camera) pair. At most one non-closed session exists per key.
type Session struct {
	Key       core.StreamKey
	CreatedAt time.Time

	transport core.Transport
	state     atomic.Int32 // zero value is StateNew
}

func (s *Session) Transport() core.Transport { return s.transport }

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// SetOffering and SetAnswered are the coordinator-driven transitions;
// everything else is driven by transport state callbacks.
func (s *Session) SetOffering() { s.setState(StateOffering) }
func (s *Session) SetAnswered() { s.setState(StateAnswered) }

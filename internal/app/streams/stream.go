package streams

import (
	"context"
	"maps"
	"sync"

	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// stream owns the pump for one inbound track and the set of
// subscribers it forwards packets to. The track itself stays owned by
// the peer session; subscribers only borrow it through the pump.
type stream struct {
	key   core.StreamKey
	track core.RemoteTrack

	mu   sync.RWMutex
	subs map[string]*subscriber

	cancel context.CancelFunc
}

func newStream(key core.StreamKey, track core.RemoteTrack, cancel context.CancelFunc) *stream {
	return &stream{
		key:    key,
		track:  track,
		subs:   make(map[string]*subscriber),
		cancel: cancel,
	}
}

// loop reads RTP packets from the inbound track and forwards them to
// all subscribers until the track errors or the context is canceled.
func (s *stream) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("stream ctx done, marking all subscribers for delete")
			s.markAllDelete()
			return
		default:
		}
		pkt, err := s.track.ReadRTP()
		if err != nil {
			logger.Error().Err(err).Msg("stream read RTP error, stopping")
			s.markAllDelete()
			return
		}
		s.forward(pkt, logger)
	}
}

func (s *stream) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	snapshot := make(map[string]*subscriber, len(s.subs))
	s.mu.RLock()
	maps.Copy(snapshot, s.subs)
	s.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for id, sub := range snapshot {
		switch sub.State() {
		case SubStateDelete:
			dirty = append(dirty, id)
		case SubStateMuted:
		case SubStateOk:
			if err := sub.sink.WriteRTP(pkt); err != nil {
				logger.Error().Err(err).Str("subscriber", id).Msg("stream write RTP error, marking subscriber for delete")
				sub.MarkDelete()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		s.cleanupDeleted(dirty)
	}
}

func (s *stream) cleanupDeleted(dirty []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range dirty {
		delete(s.subs, id)
	}
}

func (s *stream) markAllDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.MarkDelete()
	}
}

func (s *stream) addSubscriber(id string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = sub
}

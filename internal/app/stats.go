package app

import (
	"context"
	"time"

	"github.com/flathead/streamhub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Aggregate is the roll-up of every live connection's counters.
type Aggregate struct {
	TotalRobots      int    `json:"total_robots"`
	TotalViewers     int    `json:"total_viewers"`
	TotalAudioFrames uint64 `json:"total_audio_frames"`
	TotalVideoFrames uint64 `json:"total_video_frames"`
	TotalBytes       uint64 `json:"total_bytes"`
}

// Aggregator computes summaries by reading the registry at call time.
// It never writes, so it is safe on a periodic timer.
type Aggregator struct {
	Registry  *Registry
	startedAt time.Time
}

func NewAggregator(reg *Registry) *Aggregator {
	return &Aggregator{Registry: reg, startedAt: time.Now()}
}

func (a *Aggregator) Snapshot() Aggregate {
	var agg Aggregate
	for _, c := range a.Registry.All() {
		switch c.Role {
		case domain.RoleRobot.String():
			agg.TotalRobots++
		case domain.RoleViewer.String():
			agg.TotalViewers++
		}
		agg.TotalAudioFrames += c.Stats.AudioFrames
		agg.TotalVideoFrames += c.Stats.VideoFrames
		agg.TotalBytes += c.Stats.BytesReceived
	}
	return agg
}

// Run logs a summary every interval until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agg := a.Snapshot()
			elapsed := time.Since(a.startedAt).Seconds()
			log.Info().
				Str("module", "app.stats").
				Int("robots", agg.TotalRobots).
				Int("viewers", agg.TotalViewers).
				Float64("audio_fps", float64(agg.TotalAudioFrames)/elapsed).
				Float64("video_fps", float64(agg.TotalVideoFrames)/elapsed).
				Float64("bandwidth_kb_s", float64(agg.TotalBytes)/elapsed/1024).
				Msg("stats")
		}
	}
}

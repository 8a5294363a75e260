package app

import (
	"testing"

	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
)

func TestAggregatorSnapshot(t *testing.T) {
	reg := NewRegistry()
	agg := NewAggregator(reg)

	if got := agg.Snapshot(); got != (Aggregate{}) {
		t.Errorf("empty Snapshot() = %+v, want zero", got)
	}

	reg.Register("r1", &nopSession{}, nil)
	reg.Register("r2", &nopSession{}, nil)
	reg.Register("v1", &nopSession{}, nil)
	reg.Register("pending", &nopSession{}, nil)
	if err := reg.SetRobot("r1", "alpha", domain.Capabilities{Audio: true}); err != nil {
		t.Fatalf("SetRobot(r1) error = %v", err)
	}
	if err := reg.SetRobot("r2", "beta", domain.Capabilities{Video: true}); err != nil {
		t.Fatalf("SetRobot(r2) error = %v", err)
	}
	if err := reg.SetViewer("v1"); err != nil {
		t.Fatalf("SetViewer(v1) error = %v", err)
	}

	reg.RecordTraffic("r1", core.MsgAudio, 100)
	reg.RecordTraffic("r1", core.MsgVideo, 200)
	reg.RecordTraffic("r2", core.MsgStereoPair, 300)

	got := agg.Snapshot()
	want := Aggregate{
		TotalRobots:      2,
		TotalViewers:     1,
		TotalAudioFrames: 2,
		TotalVideoFrames: 1,
		TotalBytes:       600,
	}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}

func TestAggregatorIgnoresUnidentified(t *testing.T) {
	reg := NewRegistry()
	agg := NewAggregator(reg)

	reg.Register("pending", &nopSession{}, nil)

	got := agg.Snapshot()
	if got.TotalRobots != 0 || got.TotalViewers != 0 {
		t.Errorf("Snapshot() counted role-less connection: %+v", got)
	}
}

package streams

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/rtp"
)

// chanTrack feeds packets from a channel so tests control the pump.
type chanTrack struct {
	id  string
	pkt chan *rtp.Packet
}

func newChanTrack(id string) *chanTrack {
	return &chanTrack{id: id, pkt: make(chan *rtp.Packet)}
}

func (t *chanTrack) ID() string   { return t.id }
func (t *chanTrack) Kind() string { return "video" }

func (t *chanTrack) ReadRTP() (*rtp.Packet, error) {
	p, ok := <-t.pkt
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

type chanSink struct {
	mu   sync.Mutex
	pkts []*rtp.Packet
	errs int
	fail bool
	got  chan struct{}
}

func newChanSink() *chanSink {
	return &chanSink{got: make(chan struct{}, 64)}
}

func (s *chanSink) WriteRTP(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.errs++
		return io.ErrClosedPipe
	}
	s.pkts = append(s.pkts, pkt)
	select {
	case s.got <- struct{}{}:
	default:
	}
	return nil
}

func (s *chanSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pkts)
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet delivery")
	}
}

func TestRegistryForwardsToSubscribers(t *testing.T) {
	reg := NewRegistry()
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	track := newChanTrack("t1")
	defer close(track.pkt)

	reg.Register(context.Background(), key, track)
	if !reg.Has(key) {
		t.Fatal("Has() = false after Register")
	}

	sink := newChanSink()
	if !reg.Subscribe(key, "sub1", sink) {
		t.Fatal("Subscribe() = false, want true")
	}

	pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: 7}}
	track.pkt <- pkt
	waitFor(t, sink.got)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.pkts) != 1 || sink.pkts[0].SequenceNumber != 7 {
		t.Errorf("sink received %d packets, want the one with seq 7", len(sink.pkts))
	}
}

func TestRegistryUnsubscribeStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	track := newChanTrack("t1")
	defer close(track.pkt)

	reg.Register(context.Background(), key, track)
	kept := newChanSink()
	dropped := newChanSink()
	reg.Subscribe(key, "kept", kept)
	reg.Subscribe(key, "dropped", dropped)

	track.pkt <- &rtp.Packet{}
	waitFor(t, kept.got)
	waitFor(t, dropped.got)

	reg.Unsubscribe(key, "dropped")

	// Two more packets: the first may race the mark, the second is
	// guaranteed to see it since cleanup happens per forward pass.
	track.pkt <- &rtp.Packet{}
	waitFor(t, kept.got)
	track.pkt <- &rtp.Packet{}
	waitFor(t, kept.got)

	if got := dropped.count(); got > 1 {
		t.Errorf("unsubscribed sink received %d packets, want at most 1", got)
	}
	if kept.count() != 3 {
		t.Errorf("kept sink received %d packets, want 3", kept.count())
	}
}

func TestRegistryDropsFailingSubscriber(t *testing.T) {
	reg := NewRegistry()
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	track := newChanTrack("t1")
	defer close(track.pkt)

	reg.Register(context.Background(), key, track)
	bad := newChanSink()
	bad.fail = true
	good := newChanSink()
	reg.Subscribe(key, "bad", bad)
	reg.Subscribe(key, "good", good)

	track.pkt <- &rtp.Packet{}
	waitFor(t, good.got)
	track.pkt <- &rtp.Packet{}
	waitFor(t, good.got)

	bad.mu.Lock()
	errs := bad.errs
	bad.mu.Unlock()
	if errs != 1 {
		t.Errorf("failing sink written %d times, want exactly 1 before removal", errs)
	}
	if good.count() != 2 {
		t.Errorf("good sink received %d packets, want 2", good.count())
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	track := newChanTrack("t1")
	defer close(track.pkt)

	var events []Event
	var mu sync.Mutex
	reg.OnChange(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	reg.Register(context.Background(), key, track)
	reg.Remove(key)
	reg.Remove(key) // idempotent

	if reg.Has(key) {
		t.Error("Has() = true after Remove")
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (added, removed)", len(events))
	}
	if events[0].Type != StreamAdded || events[1].Type != StreamRemoved {
		t.Errorf("events = %+v, want added then removed", events)
	}
	if events[1].TrackID != "t1" {
		t.Errorf("removed TrackID = %q, want t1", events[1].TrackID)
	}
}

func TestRegistryReplaceSameKey(t *testing.T) {
	reg := NewRegistry()
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	old := newChanTrack("old")
	defer close(old.pkt)
	fresh := newChanTrack("fresh")
	defer close(fresh.pkt)

	var events []Event
	var mu sync.Mutex
	reg.OnChange(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	reg.Register(context.Background(), key, old)
	reg.Register(context.Background(), key, fresh)

	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}
	got, ok := reg.Get(key)
	if !ok || got.ID() != "fresh" {
		t.Errorf("Get() track = %v, want the replacement", got)
	}

	// The replaced stream is announced as removed before its successor
	// is announced as added, so TrackID-keyed observers never leak it.
	mu.Lock()
	defer mu.Unlock()
	want := []Event{
		{Type: StreamAdded, Key: key, TrackID: "old"},
		{Type: StreamRemoved, Key: key, TrackID: "old"},
		{Type: StreamAdded, Key: key, TrackID: "fresh"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestRegistryRemoveAllForConn(t *testing.T) {
	reg := NewRegistry()
	tracks := make([]*chanTrack, 0, 3)
	for _, key := range []core.StreamKey{
		{ConnID: "c1", CameraID: "cam0"},
		{ConnID: "c1", CameraID: "cam1"},
		{ConnID: "c2", CameraID: "cam0"},
	} {
		track := newChanTrack(key.CameraID)
		tracks = append(tracks, track)
		reg.Register(context.Background(), key, track)
	}
	defer func() {
		for _, track := range tracks {
			close(track.pkt)
		}
	}()

	reg.RemoveAllForConn("c1")

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	if !reg.Has(core.StreamKey{ConnID: "c2", CameraID: "cam0"}) {
		t.Error("stream for other connection was removed")
	}
}

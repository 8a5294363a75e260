package peers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/flathead/streamhub/internal/app/streams"
	"github.com/flathead/streamhub/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakeTransport struct {
	mu         sync.Mutex
	started    bool
	closed     int
	failStart  bool
	failOffer  bool
	candidates []webrtc.ICECandidateInit
	candErr    error

	onTrack func(ctx context.Context, track core.RemoteTrack)
	onState func(core.TransportState)
}

func (t *fakeTransport) Start(ctx context.Context) error {
	if t.failStart {
		return errors.New("start failed")
	}
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) ApplyOfferAndCreateAnswer(offerSDP string) (string, error) {
	if t.failOffer {
		return "", errors.New("bad sdp")
	}
	return "v=0 fake answer", nil
}

func (t *fakeTransport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	if t.candErr != nil {
		return t.candErr
	}
	t.mu.Lock()
	t.candidates = append(t.candidates, ci)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) OnTrack(fn func(ctx context.Context, track core.RemoteTrack)) {
	t.onTrack = fn
}

func (t *fakeTransport) OnStateChange(fn func(core.TransportState)) {
	t.onState = fn
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
}

func (t *fakeTransport) closedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeTrack struct {
	id   string
	kind string
}

func (f *fakeTrack) ID() string   { return f.id }
func (f *fakeTrack) Kind() string { return f.kind }

func (f *fakeTrack) ReadRTP() (*rtp.Packet, error) {
	return nil, io.EOF
}

// fakeFactory hands out transports in order and remembers them.
type fakeFactory struct {
	mu    sync.Mutex
	made  []*fakeTransport
	block func(i int) *fakeTransport
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{block: func(int) *fakeTransport { return &fakeTransport{} }}
}

func (f *fakeFactory) factory(key core.StreamKey) (core.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.block(len(f.made))
	f.made = append(f.made, t)
	return t, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeFactory, *streams.Registry) {
	t.Helper()
	f := newFakeFactory()
	reg := streams.NewRegistry()
	return NewManager(f.factory, reg), f, reg
}

func TestManagerUniquenessPerKey(t *testing.T) {
	m, f, _ := newTestManager(t)
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}

	first, err := m.CreateOrReplace(context.Background(), key)
	if err != nil {
		t.Fatalf("CreateOrReplace() error = %v", err)
	}
	second, err := m.CreateOrReplace(context.Background(), key)
	if err != nil {
		t.Fatalf("second CreateOrReplace() error = %v", err)
	}
	if first == second {
		t.Fatal("second session is the same object as the first")
	}

	if f.made[0].closedCount() != 1 {
		t.Errorf("first transport closed %d times, want 1", f.made[0].closedCount())
	}
	if f.made[1].closedCount() != 0 {
		t.Errorf("second transport closed %d times, want 0", f.made[1].closedCount())
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	if got, _ := m.Get(key); got != second {
		t.Error("Get() did not return the replacement session")
	}
}

func TestManagerCloseIdempotent(t *testing.T) {
	m, f, _ := newTestManager(t)
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}

	if _, err := m.CreateOrReplace(context.Background(), key); err != nil {
		t.Fatalf("CreateOrReplace() error = %v", err)
	}

	if !m.Close(key) {
		t.Error("first Close() = false, want true")
	}
	if m.Close(key) {
		t.Error("second Close() = true, want false")
	}
	if m.Close(core.StreamKey{ConnID: "ghost", CameraID: "x"}) {
		t.Error("Close on unknown key = true, want false")
	}
	if f.made[0].closedCount() != 1 {
		t.Errorf("transport closed %d times, want 1", f.made[0].closedCount())
	}
}

func TestManagerCloseAllForClient(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	for _, key := range []core.StreamKey{
		{ConnID: "c1", CameraID: "cam0"},
		{ConnID: "c1", CameraID: "cam1"},
		{ConnID: "c2", CameraID: "cam0"},
	} {
		if _, err := m.CreateOrReplace(ctx, key); err != nil {
			t.Fatalf("CreateOrReplace(%v) error = %v", key, err)
		}
	}

	if n := m.CloseAllForClient("c1"); n != 2 {
		t.Errorf("CloseAllForClient(c1) = %d, want 2", n)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	if m.CountForClient("c1") != 0 {
		t.Errorf("CountForClient(c1) = %d, want 0", m.CountForClient("c1"))
	}
}

func TestManagerSelfCloseOnTransportFailure(t *testing.T) {
	tests := []struct {
		name  string
		state core.TransportState
		want  State
	}{
		{"failed", core.TransportFailed, StateFailed},
		{"disconnected", core.TransportDisconnected, StateDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, f, _ := newTestManager(t)
			key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
			sess, err := m.CreateOrReplace(context.Background(), key)
			if err != nil {
				t.Fatalf("CreateOrReplace() error = %v", err)
			}

			f.made[0].onState(tt.state)

			if _, ok := m.Get(key); ok {
				t.Error("session still registered after transport failure")
			}
			if sess.State() != tt.want {
				t.Errorf("State() = %v, want %v", sess.State(), tt.want)
			}
			if f.made[0].closedCount() != 1 {
				t.Errorf("transport closed %d times, want 1", f.made[0].closedCount())
			}
		})
	}
}

func TestManagerConnectedState(t *testing.T) {
	m, f, _ := newTestManager(t)
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	sess, err := m.CreateOrReplace(context.Background(), key)
	if err != nil {
		t.Fatalf("CreateOrReplace() error = %v", err)
	}

	f.made[0].onState(core.TransportConnected)

	if sess.State() != StateConnected {
		t.Errorf("State() = %v, want connected", sess.State())
	}
	if _, ok := m.Get(key); !ok {
		t.Error("connected session was removed")
	}
}

func TestManagerStartFailureLeavesNothing(t *testing.T) {
	f := newFakeFactory()
	f.block = func(int) *fakeTransport { return &fakeTransport{failStart: true} }
	m := NewManager(f.factory, streams.NewRegistry())

	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}
	if _, err := m.CreateOrReplace(context.Background(), key); err == nil {
		t.Fatal("CreateOrReplace() error = nil, want start failure")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	if f.made[0].closedCount() != 1 {
		t.Errorf("transport closed %d times, want 1", f.made[0].closedCount())
	}
}

func TestManagerRegistersVideoTracks(t *testing.T) {
	m, f, reg := newTestManager(t)
	key := core.StreamKey{ConnID: "c1", CameraID: "cam0"}

	var events []streams.Event
	var mu sync.Mutex
	reg.OnChange(func(ev streams.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	if _, err := m.CreateOrReplace(context.Background(), key); err != nil {
		t.Fatalf("CreateOrReplace() error = %v", err)
	}

	f.made[0].onTrack(context.Background(), &fakeTrack{id: "a1", kind: "audio"})
	if reg.Has(key) {
		t.Error("audio track registered, want video only")
	}

	f.made[0].onTrack(context.Background(), &fakeTrack{id: "t1", kind: "video"})
	if !reg.Has(key) {
		t.Fatal("video track not registered")
	}

	m.Close(key)
	if reg.Has(key) {
		t.Error("stream still registered after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0].Type != streams.StreamAdded || events[1].Type != streams.StreamRemoved {
		t.Errorf("events = %+v, want added then removed", events)
	}
	if events[0].TrackID != "t1" {
		t.Errorf("added TrackID = %q, want t1", events[0].TrackID)
	}
}

package game

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/playback"
)

// recordedEvent is one message captured by the fake gateway, with the
// envelope type extracted so tests can count by event type.
type recordedEvent struct {
	Target string // player id for direct sends, "" for broadcasts
	Type   string
	Raw    json.RawMessage
}

type fakeGateway struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (g *fakeGateway) record(target string, msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		panic(err)
	}
	g.mu.Lock()
	g.events = append(g.events, recordedEvent{Target: target, Type: env.Type, Raw: env.Data})
	g.mu.Unlock()
}

func (g *fakeGateway) Broadcast(room *internal.Room, msg any) {
	g.record("", msg)
}

func (g *fakeGateway) BroadcastExcept(room *internal.Room, msg any, except *internal.Player) {
	g.record("", msg)
}

func (g *fakeGateway) Send(player *internal.Player, msg any) error {
	g.record(player.Id, msg)
	return nil
}

func (g *fakeGateway) count(eventType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, ev := range g.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func (g *fakeGateway) last(eventType string) (recordedEvent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Type == eventType {
			return g.events[i], true
		}
	}
	return recordedEvent{}, false
}

func (g *fakeGateway) decodeLast(t *testing.T, eventType string, out any) {
	t.Helper()
	ev, ok := g.last(eventType)
	if !ok {
		t.Fatalf("no %q event recorded", eventType)
	}
	if err := json.Unmarshal(ev.Raw, out); err != nil {
		t.Fatalf("decode %q payload: %v", eventType, err)
	}
}

// fakeController records every call and serves scripted states: State pops
// from states until one remains, which then repeats.
type fakeController struct {
	mu       sync.Mutex
	plays    []string
	queued   []string
	pauses   int
	resumes  int
	states   []*playback.PlayerState
	stateErr error
	playErr  error
}

func (c *fakeController) Play(ctx context.Context, deviceID, songID string, positionMs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays = append(c.plays, songID)
	return c.playErr
}

func (c *fakeController) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauses++
	return nil
}

func (c *fakeController) Resume(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumes++
	return nil
}

func (c *fakeController) Seek(ctx context.Context, positionMs int) error      { return nil }
func (c *fakeController) SetVolume(ctx context.Context, percent int) error    { return nil }
func (c *fakeController) SetShuffle(ctx context.Context, on bool) error       { return nil }
func (c *fakeController) SetRepeat(ctx context.Context, mode string) error    { return nil }
func (c *fakeController) Transfer(ctx context.Context, deviceID string) error { return nil }

func (c *fakeController) Queue(ctx context.Context, songID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, songID)
	return nil
}

func (c *fakeController) State(ctx context.Context) (*playback.PlayerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateErr != nil {
		return nil, c.stateErr
	}
	if len(c.states) == 0 {
		return &playback.PlayerState{IsPlaying: true}, nil
	}
	state := c.states[0]
	if len(c.states) > 1 {
		c.states = c.states[1:]
	}
	return state, nil
}

func (c *fakeController) Devices(ctx context.Context) ([]playback.Device, error) {
	return nil, nil
}

func (c *fakeController) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plays)
}

func (c *fakeController) lastPlay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.plays) == 0 {
		return ""
	}
	return c.plays[len(c.plays)-1]
}

// ---- shared fixtures ----

func testDevices(t *testing.T, locked bool) *playback.DeviceStore {
	t.Helper()
	store := playback.NewDeviceStore(filepath.Join(t.TempDir(), "device.json"))
	if locked {
		if err := store.Save(playback.Credentials{DeviceID: "device-1", AccessToken: "tok"}); err != nil {
			t.Fatalf("seed device store: %v", err)
		}
	}
	return store
}

func testService(t *testing.T, locked bool) (*Service, *fakeGateway, *fakeController) {
	t.Helper()
	gw := &fakeGateway{}
	controller := &fakeController{}
	store := NewStore(zerolog.Nop())
	svc := NewService(store, gw, controller, testDevices(t, locked), 30, zerolog.Nop())
	return svc, gw, controller
}

func makeSongs(n int, prefix string) []internal.Song {
	songs := make([]internal.Song, n)
	for i := range songs {
		songs[i] = internal.Song{
			ID:     fmt.Sprintf("%s-%03d", prefix, i),
			Name:   fmt.Sprintf("Song %d", i),
			Artist: "Artist",
		}
	}
	return songs
}

func testPlayer(name, clientID string, host bool) *internal.Player {
	return &internal.Player{
		Id:       name + "-conn",
		Name:     name,
		ClientID: clientID,
		IsHost:   host,
	}
}

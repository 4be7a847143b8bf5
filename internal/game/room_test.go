package game

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
)

// A reconnecting client recovers the exact card it held before dropping, keyed
// by its stable client id.
func TestReconnectRecoversSameCard(t *testing.T) {
	svc, _, _ := testService(t, true)
	players := joinAll(t, svc, "room-rejoin", 1)
	room, _ := svc.Store().Get("room-rejoin")
	host, alice := players[0], players[1]

	finalize(t, svc, room, host, []internal.SourcePool{
		{Name: "pool", Songs: makeSongs(80, "p")},
	})
	card := alice.Card
	if card == nil {
		t.Fatal("no card dealt at finalize")
	}

	svc.Leave(alice)

	rejoined := testPlayer("Alex2", alice.ClientID, false)
	if _, err := svc.Join("room-rejoin", rejoined); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if rejoined.Card != card {
		t.Fatal("reconnect dealt a different card")
	}
}

// A fresh client joining mid-game draws from the cached deck and gets the
// now-playing push immediately.
func TestLateJoinerDealtFromCachedDeck(t *testing.T) {
	svc, gw, _ := testService(t, true)
	players := joinAll(t, svc, "room-late", 1)
	room, _ := svc.Store().Get("room-late")
	host := players[0]

	finalize(t, svc, room, host, []internal.SourcePool{
		{Name: "pool", Songs: makeSongs(80, "p")},
	})
	svc.StartGame(room, host)

	late := testPlayer("Late", "client-late", false)
	if _, err := svc.Join("room-late", late); err != nil {
		t.Fatalf("late join: %v", err)
	}
	if late.Card == nil {
		t.Fatal("late joiner got no card")
	}

	pool := make(map[string]bool)
	room.Mu.RLock()
	for _, s := range room.Deck.Pool {
		pool[s.ID] = true
	}
	room.Mu.RUnlock()
	for _, id := range late.Card.SongIDs() {
		if !pool[id] {
			t.Fatalf("late card song %s outside the cached deck", id)
		}
	}

	// The direct song_playing push targets the late joiner.
	ev, ok := gw.last(internal.EventSongPlaying)
	if !ok || ev.Target != late.Id {
		t.Fatalf("last song_playing target = %q, want %q", ev.Target, late.Id)
	}
}

// Host departure promotes the connected non-display player with the lowest
// join order, deterministically.
func TestHostReassignmentLowestJoinOrder(t *testing.T) {
	svc, gw, _ := testService(t, true)
	players := joinAll(t, svc, "room-host", 3)
	room, _ := svc.Store().Get("room-host")
	host, first := players[0], players[1]

	svc.Leave(host)

	room.Mu.RLock()
	newHost := room.Host()
	room.Mu.RUnlock()
	if newHost == nil || newHost.Id != first.Id {
		t.Fatalf("promoted %v, want %s", newHost, first.Id)
	}

	var change internal.HostChangedData
	gw.decodeLast(t, internal.EventHostChanged, &change)
	if change.PlayerID != first.Id {
		t.Fatalf("host_changed for %s, want %s", change.PlayerID, first.Id)
	}
}

func TestDisplayConnectionNeverPromoted(t *testing.T) {
	svc, _, _ := testService(t, true)
	host := testPlayer("host", "client-host", true)
	if _, err := svc.Join("room-display", host); err != nil {
		t.Fatalf("host join: %v", err)
	}
	display := testPlayer("projector", "client-display", false)
	display.IsDisplay = true
	if _, err := svc.Join("room-display", display); err != nil {
		t.Fatalf("display join: %v", err)
	}
	guest := testPlayer("guest", "client-guest", false)
	if _, err := svc.Join("room-display", guest); err != nil {
		t.Fatalf("guest join: %v", err)
	}

	svc.Leave(host)

	room, _ := svc.Store().Get("room-display")
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	newHost := room.Host()
	if newHost == nil || newHost.Id != guest.Id {
		t.Fatal("display connection was promoted to host")
	}
}

// The last connection out tears the room down: timers cancelled, room gone
// from the store.
func TestEmptyRoomTeardown(t *testing.T) {
	svc, _, _ := testService(t, true)
	players := joinAll(t, svc, "room-empty", 1)
	room, _ := svc.Store().Get("room-empty")
	host := players[0]

	finalize(t, svc, room, host, []internal.SourcePool{
		{Name: "pool", Songs: makeSongs(80, "p")},
	})
	svc.StartGame(room, host)

	svc.Leave(players[1])
	svc.Leave(host)

	if svc.Store().Count() != 0 {
		t.Fatal("room survived the last leave")
	}
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	if room.Sched != nil {
		t.Fatal("teardown left timers armed")
	}
}

// Resync pushes the full state again; repeated requests are harmless.
func TestResyncIdempotent(t *testing.T) {
	svc, gw, _ := testService(t, true)
	players := joinAll(t, svc, "room-resync", 1)
	room, _ := svc.Store().Get("room-resync")
	host, alice := players[0], players[1]

	finalize(t, svc, room, host, []internal.SourcePool{
		{Name: "pool", Songs: makeSongs(80, "p")},
	})
	svc.StartGame(room, host)

	before := gw.count(internal.EventWelcome)
	svc.Resync(alice)
	svc.Resync(alice)
	if got := gw.count(internal.EventWelcome) - before; got != 2 {
		t.Fatalf("welcome pushes = %d, want 2", got)
	}

	var welcome internal.WelcomeData
	gw.decodeLast(t, internal.EventWelcome, &welcome)
	if welcome.Game.State != internal.StatePlaying {
		t.Fatalf("resync state = %s, want playing", welcome.Game.State)
	}
	if welcome.Card == nil {
		t.Fatal("resync dropped the player's card")
	}
}

func TestRoomCapRejectsOverflow(t *testing.T) {
	svc, _, _ := testService(t, true)
	joinAll(t, svc, "room-cap", MaxPlayersPerRoom)

	_, err := svc.Join("room-cap", testPlayer("overflow", "client-overflow", false))
	if !errors.Is(err, internal.ErrRoomFull) {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}

	// Displays do not count against the cap.
	display := testPlayer("projector", "client-proj", false)
	display.IsDisplay = true
	if _, err := svc.Join("room-cap", display); err != nil {
		t.Fatalf("display join past cap: %v", err)
	}
}

func TestStoreGetOrCreateIdempotent(t *testing.T) {
	store := NewStore(zerolog.Nop())
	a := store.GetOrCreate("r1", 30)
	b := store.GetOrCreate("r1", 45)
	if a != b {
		t.Fatal("GetOrCreate returned different rooms for one id")
	}
	if a.SnippetSeconds != 30 {
		t.Fatalf("snippet = %d, want the creation-time value 30", a.SnippetSeconds)
	}
	if a.State != internal.StateWaiting || a.Pattern != internal.PatternLine {
		t.Fatal("new room defaults wrong")
	}

	if _, ok := store.Lookup("missing"); ok {
		t.Fatal("lookup invented a room")
	}
}

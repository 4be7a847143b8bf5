package game

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/telemetry"
)

// Store is the in-memory room registry. It is passed by injection instead of
// living in package globals; access is keyed only, never iterated for
// game-visible decisions.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*internal.Room
	log   zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		rooms: make(map[string]*internal.Room),
		log:   logger.With().Str("component", "room_store").Logger(),
	}
}

func (s *Store) Get(roomID string) (*internal.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// GetOrCreate retrieves an existing room or creates a new one in the waiting
// state. Rooms come into existence on first join to an unknown identifier.
func (s *Store) GetOrCreate(roomID string, snippetSeconds int) *internal.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, exists := s.rooms[roomID]; exists {
		return room
	}

	if snippetSeconds <= 0 {
		snippetSeconds = internal.DefaultSnippetSeconds
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &internal.Room{
		Id:             roomID,
		State:          internal.StateWaiting,
		Pattern:        internal.PatternLine,
		Round:          1,
		SnippetSeconds: snippetSeconds,
		Winners:        make([]internal.Winner, 0),
		Players:        make(map[string]*internal.Player),
		CardsByClient:  make(map[string]*internal.BingoCard),
		Context:        ctx,
		Cancel:         cancel,
	}
	s.rooms[roomID] = room
	telemetry.RoomsActive.Set(float64(len(s.rooms)))

	s.log.Info().Str("room_id", roomID).Int("snippet_seconds", snippetSeconds).Msg("room created")
	return room
}

// Delete removes a room from the registry. The caller is responsible for
// cancelling the room's timers and context first.
func (s *Store) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[roomID]; !exists {
		return
	}
	delete(s.rooms, roomID)
	telemetry.RoomsActive.Set(float64(len(s.rooms)))
	s.log.Info().Str("room_id", roomID).Msg("room removed")
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Lookup returns the summarized state for the room lookup endpoint.
func (s *Store) Lookup(roomID string) (internal.GameStateData, bool) {
	room, ok := s.Get(roomID)
	if !ok {
		return internal.GameStateData{}, false
	}
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return room.Snapshot(), true
}

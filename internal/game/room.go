package game

import (
	"time"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/dealer"
	"github.com/scythe504/tunebingo-backend/internal/telemetry"
)

// Join attaches a connection to a room, creating the room on first contact.
// Reconnecting clients recover the card keyed by their stable client id; a
// fresh mid-round joiner is dealt a new card from the cached deck. The caller
// gets the room back so it can run the read loop against it.
func (s *Service) Join(roomID string, player *internal.Player) (*internal.Room, error) {
	room := s.store.GetOrCreate(roomID, s.snippetSeconds)

	room.Mu.Lock()

	if !player.IsHost && !player.IsDisplay {
		if room.LockJoins {
			room.Mu.Unlock()
			s.log.Info().Str("room_id", roomID).Str("name", player.Name).Msg("join rejected, room locked")
			return nil, internal.ErrRoomLocked
		}
		if room.GetPlayerCount() >= MaxPlayersPerRoom {
			room.Mu.Unlock()
			s.log.Info().Str("room_id", roomID).Str("name", player.Name).Msg("join rejected, room full")
			return nil, internal.ErrRoomFull
		}
	}

	room.JoinSeq++
	player.JoinOrder = room.JoinSeq
	player.JoinedAt = time.Now()
	player.IsConnected = true
	player.Room = room

	if player.IsHost {
		room.ClaimHost(player)
	}
	room.Players[player.Id] = player

	dealt := false
	if !player.IsHost && !player.IsDisplay {
		if card, ok := room.CardsByClient[player.ClientID]; ok {
			// Reconnect: same client id gets the exact card back.
			player.Card = card
			player.HasWon = room.IsWinner(player.Name)
		} else if room.Deck != nil {
			card, err := dealer.Deal(room.Deck, player.Name)
			if err != nil {
				s.log.Error().Err(err).Str("room_id", roomID).Str("name", player.Name).Msg("late-join deal failed")
			} else {
				player.Card = card
				room.CardsByClient[player.ClientID] = card
				telemetry.CardsDealtTotal.WithLabelValues(string(room.Deck.Mode)).Inc()
				dealt = true
			}
		}
	}

	snap := room.Snapshot()
	card := player.Card.Clone()
	playing := room.State == internal.StatePlaying
	song := room.CurrentSong()
	total := len(room.Sequence)
	index := room.CurrentIndex
	snippet := room.SnippetSeconds
	room.Mu.Unlock()

	telemetry.PlayersConnected.Inc()

	s.log.Info().
		Str("room_id", roomID).
		Str("player_id", player.Id).
		Str("name", player.Name).
		Bool("host", player.IsHost).
		Bool("display", player.IsDisplay).
		Bool("dealt", dealt).
		Msg("player joined")

	s.gw.BroadcastExcept(room, internal.Message[internal.PlayerJoinedData]{
		Type: internal.EventPlayerJoined,
		Data: internal.PlayerJoinedData{
			Player:      player.ToPublicPlayer(),
			PlayerCount: snap.PlayerCount,
		},
	}, player)

	if err := s.gw.Send(player, internal.Message[internal.WelcomeData]{
		Type: internal.EventWelcome,
		Data: internal.WelcomeData{
			Player: player.ToPublicPlayer(),
			Game:   snap,
			Card:   card,
		},
	}); err != nil {
		return room, nil
	}

	// Mid-round joiner gets the now-playing push immediately instead of
	// waiting for the next advance.
	if playing && song != nil {
		_ = s.gw.Send(player, internal.Message[internal.SongPlayingData]{
			Type: internal.EventSongPlaying,
			Data: internal.SongPlayingData{
				SongID:         song.ID,
				Name:           song.Name,
				Artist:         song.Artist,
				SnippetSeconds: snippet,
				Index:          index,
				Total:          total,
			},
		})
	}

	return room, nil
}

// Leave detaches a connection. The card stays in CardsByClient so the same
// client can reconnect into it. Host departure promotes the lowest join
// order; the last connection out tears the room down.
func (s *Service) Leave(player *internal.Player) {
	room := player.Room
	if room == nil {
		return
	}

	room.Mu.Lock()
	if _, ok := room.Players[player.Id]; !ok {
		room.Mu.Unlock()
		return
	}
	delete(room.Players, player.Id)
	player.IsConnected = false
	wasHost := player.IsHost

	var promoted *internal.Player
	empty := len(room.Players) == 0
	if wasHost && !empty {
		if next := room.NextHost(); next != nil {
			room.ClaimHost(next)
			promoted = next
		}
	}
	count := room.GetPlayerCount()
	room.Mu.Unlock()

	telemetry.PlayersConnected.Dec()

	s.log.Info().
		Str("room_id", room.Id).
		Str("player_id", player.Id).
		Str("name", player.Name).
		Bool("was_host", wasHost).
		Msg("player left")

	if empty {
		s.sched.CancelTimers(room)
		room.Cancel()
		s.store.Delete(room.Id)
		return
	}

	s.gw.Broadcast(room, internal.Message[internal.PlayerLeftData]{
		Type: internal.EventPlayerLeft,
		Data: internal.PlayerLeftData{
			PlayerID:    player.Id,
			Name:        player.Name,
			PlayerCount: count,
		},
	})

	if promoted != nil {
		s.log.Info().Str("room_id", room.Id).Str("player_id", promoted.Id).Msg("host reassigned")
		s.gw.Broadcast(room, internal.Message[internal.HostChangedData]{
			Type: internal.EventHostChanged,
			Data: internal.HostChangedData{PlayerID: promoted.Id, Name: promoted.Name},
		})
	}
}

// Resync re-sends the full authoritative state to one connection. The push is
// idempotent, so clients may request it any time they suspect drift.
func (s *Service) Resync(player *internal.Player) {
	room := player.Room
	if room == nil {
		return
	}

	room.Mu.RLock()
	snap := room.Snapshot()
	card := player.Card.Clone()
	playing := room.State == internal.StatePlaying
	song := room.CurrentSong()
	total := len(room.Sequence)
	index := room.CurrentIndex
	snippet := room.SnippetSeconds
	room.Mu.RUnlock()

	_ = s.gw.Send(player, internal.Message[internal.WelcomeData]{
		Type: internal.EventWelcome,
		Data: internal.WelcomeData{
			Player: player.ToPublicPlayer(),
			Game:   snap,
			Card:   card,
		},
	})

	if playing && song != nil {
		_ = s.gw.Send(player, internal.Message[internal.SongPlayingData]{
			Type: internal.EventSongPlaying,
			Data: internal.SongPlayingData{
				SongID:         song.ID,
				Name:           song.Name,
				Artist:         song.Artist,
				SnippetSeconds: snippet,
				Index:          index,
				Total:          total,
			},
		})
	}
}

// ForceRefresh tells every client in the room to drop local state and resync.
func (s *Service) ForceRefresh(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdForceRefresh) {
		return
	}
	s.gw.Broadcast(room, internal.Message[struct{}]{Type: internal.EventForceRefresh})
}

package game

import (
	"errors"
	"time"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/dealer"
	"github.com/scythe504/tunebingo-backend/internal/telemetry"
)

// ===================== Mix + Dealing =====================

// FinalizeMix derives the fixed deck from the host's pools, deals every
// non-host player a card, and caches the deck so late joiners draw from the
// same universe. Re-finalizing replaces the deck and re-deals everyone.
func (s *Service) FinalizeMix(room *internal.Room, player *internal.Player, data internal.FinalizeMixData) {
	if !s.requireHost(room, player, internal.CmdFinalizeMix) {
		return
	}

	deck, err := dealer.Build(data.Pools, data.HostOrder)
	if err != nil {
		var insufficient *internal.InsufficientSongsError
		if errors.As(err, &insufficient) {
			s.log.Warn().
				Str("room_id", room.Id).
				Int("required", insufficient.Required).
				Int("available", insufficient.Available).
				Msg("mix rejected, not enough songs")
			_ = s.gw.Send(player, internal.Message[internal.DealFailedData]{
				Type: internal.EventDealFailed,
				Data: internal.DealFailedData{
					Required:  insufficient.Required,
					Available: insufficient.Available,
				},
			})
			return
		}
		s.log.Error().Err(err).Str("room_id", room.Id).Msg("mix build failed")
		return
	}

	room.Mu.Lock()
	room.Deck = deck
	room.Sequence = dealer.PlaySequence(deck)
	room.CurrentIndex = 0
	room.RevealPools = dealer.RevealPools(deck)
	room.RevealStage = 0
	recipients := s.dealCardsLocked(room)
	mix := mixSummaryLocked(room)
	room.Mu.Unlock()

	s.log.Info().
		Str("room_id", room.Id).
		Str("mode", string(deck.Mode)).
		Int("pool_size", mix.PoolSize).
		Int("cards_dealt", len(recipients)).
		Msg("mix finalized")

	for _, d := range recipients {
		_ = s.gw.Send(d.player, internal.Message[*internal.BingoCard]{
			Type: internal.EventBingoCard,
			Data: d.card,
		})
	}

	s.gw.Broadcast(room, internal.Message[internal.MixFinalizedData]{
		Type: internal.EventMixFinalized,
		Data: mix,
	})
}

// cardDeal pairs a recipient with a payload clone of their card, taken while
// the room lock was held.
type cardDeal struct {
	player *internal.Player
	card   *internal.BingoCard
}

// dealCardsLocked deals a fresh card to every connected non-host, non-display
// player from the cached deck. Caller holds the write lock.
func (s *Service) dealCardsLocked(room *internal.Room) []cardDeal {
	recipients := make([]cardDeal, 0, len(room.Players))
	for _, p := range room.Players {
		if p.IsHost || p.IsDisplay || !p.IsConnected {
			continue
		}
		card, err := dealer.Deal(room.Deck, p.Name)
		if err != nil {
			s.log.Error().Err(err).Str("room_id", room.Id).Str("name", p.Name).Msg("deal failed")
			continue
		}
		p.Card = card
		p.HasWon = false
		room.CardsByClient[p.ClientID] = card
		telemetry.CardsDealtTotal.WithLabelValues(string(room.Deck.Mode)).Inc()
		recipients = append(recipients, cardDeal{player: p, card: card.Clone()})
	}
	return recipients
}

func mixSummaryLocked(room *internal.Room) internal.MixFinalizedData {
	deck := room.Deck
	mix := internal.MixFinalizedData{Mode: deck.Mode}
	switch deck.Mode {
	case internal.DealModeFiveBy15:
		mix.PoolCount = len(deck.Columns)
		mix.PoolSize = internal.ColumnPoolSize
	default:
		mix.PoolCount = 1
		mix.PoolSize = len(deck.Pool)
		if deck.Mode == internal.DealModeOneBy75 {
			ids := make([]string, len(deck.Pool))
			for i, song := range deck.Pool {
				ids[i] = song.ID
			}
			mix.PoolIDs = ids
		}
	}
	return mix
}

// ===================== Lifecycle =====================

// StartGame moves the room into the playing state and starts the first song.
// Requires a finalized mix; starting an already-playing room is a no-op.
func (s *Service) StartGame(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdStartGame) {
		return
	}

	// Fail fast before mutating state: a game must not enter playing with no
	// device to play on.
	if _, err := s.devices.LockedDevice(); err != nil {
		s.log.Error().Str("room_id", room.Id).Msg("start refused, no locked device")
		_ = s.gw.Send(player, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackError,
			Data: internal.PlaybackIssueData{Code: "no_locked_device", Message: "no playback device is locked in"},
		})
		return
	}

	room.Mu.Lock()
	if room.Deck == nil || len(room.Sequence) == 0 {
		room.Mu.Unlock()
		s.log.Warn().Str("room_id", room.Id).Msg("start refused, no finalized mix")
		_ = s.gw.Send(player, internal.Message[internal.DealFailedData]{
			Type: internal.EventDealFailed,
			Data: internal.DealFailedData{Required: internal.CardSize, Available: 0},
		})
		return
	}
	if room.State == internal.StatePlaying {
		room.Mu.Unlock()
		return
	}
	room.State = internal.StatePlaying
	room.CurrentIndex = 0

	// Anyone still without a card (joined between finalize and start without
	// a prior card to recover) gets dealt now.
	var lateDeals []cardDeal
	for _, p := range room.Players {
		if p.IsHost || p.IsDisplay || !p.IsConnected || p.Card != nil {
			continue
		}
		card, err := dealer.Deal(room.Deck, p.Name)
		if err != nil {
			s.log.Error().Err(err).Str("room_id", room.Id).Str("name", p.Name).Msg("deal at start failed")
			continue
		}
		p.Card = card
		room.CardsByClient[p.ClientID] = card
		telemetry.CardsDealtTotal.WithLabelValues(string(room.Deck.Mode)).Inc()
		lateDeals = append(lateDeals, cardDeal{player: p, card: card.Clone()})
	}
	snap := room.Snapshot()
	room.Mu.Unlock()

	for _, d := range lateDeals {
		_ = s.gw.Send(d.player, internal.Message[*internal.BingoCard]{
			Type: internal.EventBingoCard,
			Data: d.card,
		})
	}

	s.log.Info().Str("room_id", room.Id).Int("round", snap.Round).Int("total_songs", snap.TotalSongs).Msg("game started")

	s.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventGameStarted,
		Data: snap,
	})

	s.sched.StartSong(room, 0)
}

// EndGame stops playback and marks the round over. Cards and winners stay
// visible until a reset or new round.
func (s *Service) EndGame(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdEndGame) {
		return
	}
	s.sched.EndRound(room, "host_ended")
}

// ResetGame returns the room to a blank waiting state: deck, cards, winners
// and round counter all cleared.
func (s *Service) ResetGame(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdResetGame) {
		return
	}

	s.sched.CancelTimers(room)

	room.Mu.Lock()
	room.State = internal.StateWaiting
	room.CurrentIndex = 0
	room.Round = 1
	room.Winners = room.Winners[:0]
	room.Deck = nil
	room.Sequence = nil
	room.RevealPools = nil
	room.RevealStage = 0
	room.CardsByClient = make(map[string]*internal.BingoCard)
	for _, p := range room.Players {
		p.ResetRoundState()
	}
	snap := room.Snapshot()
	room.Mu.Unlock()

	s.log.Info().Str("room_id", room.Id).Msg("game reset")

	s.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventGameReset,
		Data: snap,
	})
}

// NewRound keeps the cached deck but clears winners, re-deals fresh cards and
// reshuffles the play sequence. The room waits for the host to start again.
func (s *Service) NewRound(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdNewRound) {
		return
	}

	s.sched.CancelTimers(room)

	room.Mu.Lock()
	if room.Deck == nil {
		room.Mu.Unlock()
		s.log.Warn().Str("room_id", room.Id).Msg("new round refused, no finalized mix")
		return
	}
	room.Round++
	room.State = internal.StateWaiting
	room.CurrentIndex = 0
	room.RevealStage = 0
	room.Winners = room.Winners[:0]
	room.Sequence = dealer.PlaySequence(room.Deck)
	recipients := s.dealCardsLocked(room)
	snap := room.Snapshot()
	room.Mu.Unlock()

	s.log.Info().Str("room_id", room.Id).Int("round", snap.Round).Msg("new round")

	s.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventRoundReset,
		Data: snap,
	})

	for _, d := range recipients {
		_ = s.gw.Send(d.player, internal.Message[*internal.BingoCard]{
			Type: internal.EventBingoCard,
			Data: d.card,
		})
	}
}

// ===================== Room settings =====================

func (s *Service) SetPattern(room *internal.Room, player *internal.Player, data internal.SetPatternData) {
	if !s.requireHost(room, player, internal.CmdSetPattern) {
		return
	}
	if !data.Pattern.Valid() {
		s.log.Warn().Str("room_id", room.Id).Str("pattern", string(data.Pattern)).Msg("invalid pattern, dropping")
		return
	}

	room.Mu.Lock()
	room.Pattern = data.Pattern
	room.Mu.Unlock()

	s.gw.Broadcast(room, internal.Message[internal.PatternUpdatedData]{
		Type: internal.EventPatternUpdated,
		Data: internal.PatternUpdatedData{Pattern: data.Pattern},
	})
}

func (s *Service) SetLockJoins(room *internal.Room, player *internal.Player, data internal.SetLockJoinsData) {
	if !s.requireHost(room, player, internal.CmdSetLockJoins) {
		return
	}

	room.Mu.Lock()
	room.LockJoins = data.Locked
	room.Mu.Unlock()

	s.gw.Broadcast(room, internal.Message[internal.LockJoinsData]{
		Type: internal.EventLockJoins,
		Data: internal.LockJoinsData{Locked: data.Locked},
	})
}

func (s *Service) SetPreQueue(room *internal.Room, player *internal.Player, data internal.SetPreQueueData) {
	if !s.requireHost(room, player, internal.CmdSetPreQueue) {
		return
	}
	if data.Window <= 0 {
		data.Window = 1
	}

	room.Mu.Lock()
	room.PreQueue = internal.PreQueueConfig{Enabled: data.Enabled, Window: data.Window}
	room.Mu.Unlock()

	s.gw.Broadcast(room, internal.Message[internal.SetPreQueueData]{
		Type: internal.EventPreQueue,
		Data: data,
	})
}

// ===================== Cards + Wins =====================

// HandleToggleSquare flips a square on the player's own card and re-evaluates
// the win condition; completing the pattern records the win the same way an
// explicit claim does. Card mutation happens under the room lock: re-deals
// swap the card pointer and broadcasts marshal it on other goroutines.
func (s *Service) HandleToggleSquare(room *internal.Room, player *internal.Player, data internal.ToggleSquareData) {
	room.Mu.Lock()
	if player.Card == nil {
		room.Mu.Unlock()
		return
	}
	if _, ok := player.Card.ToggleSquare(data.Position); !ok {
		room.Mu.Unlock()
		s.log.Warn().Str("room_id", room.Id).Str("position", data.Position).Msg("toggle on unknown position")
		return
	}
	winners, won := s.recordWinLocked(room, player)
	room.Mu.Unlock()

	if won {
		s.announceWin(room, player, winners)
	}
}

// HandleBingo validates an explicit claim against the active pattern.
// Invalid claims are rejected privately; valid ones are recorded once.
func (s *Service) HandleBingo(room *internal.Room, player *internal.Player) {
	if player.IsDisplay {
		return
	}

	room.Mu.Lock()
	if player.Card == nil {
		room.Mu.Unlock()
		return
	}
	pattern := room.Pattern
	satisfied := player.Card.HasPattern(pattern)
	var winners []internal.Winner
	var won bool
	if satisfied {
		winners, won = s.recordWinLocked(room, player)
	}
	room.Mu.Unlock()

	if !satisfied {
		s.log.Info().Str("room_id", room.Id).Str("name", player.Name).Str("pattern", string(pattern)).Msg("bingo claim rejected")
		_ = s.gw.Send(player, internal.Message[internal.PatternUpdatedData]{
			Type: internal.EventBingoRejected,
			Data: internal.PatternUpdatedData{Pattern: pattern},
		})
		return
	}
	if won {
		s.announceWin(room, player, winners)
	}
}

// recordWinLocked records a win exactly once per player per round and returns
// the updated winners list. Caller holds the write lock.
func (s *Service) recordWinLocked(room *internal.Room, player *internal.Player) ([]internal.Winner, bool) {
	if player.Card == nil || player.HasWon || !player.Card.HasPattern(room.Pattern) {
		return nil, false
	}
	player.HasWon = true
	room.Winners = append(room.Winners, internal.Winner{
		Name:      player.Name,
		ClaimedAt: time.Now().UnixMilli(),
	})
	return append([]internal.Winner(nil), room.Winners...), true
}

func (s *Service) announceWin(room *internal.Room, player *internal.Player, winners []internal.Winner) {
	telemetry.BingosCalledTotal.Inc()
	s.log.Info().Str("room_id", room.Id).Str("name", player.Name).Msg("bingo")

	s.gw.Broadcast(room, internal.Message[internal.BingoCalledData]{
		Type: internal.EventBingoCalled,
		Data: internal.BingoCalledData{Winner: player.Name, Winners: winners},
	})
}

// ===================== Staged reveal =====================

// RevealCall publishes the next reveal stage: song identifiers only, titles
// stay hidden until songs are actually played.
func (s *Service) RevealCall(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdRevealCall) {
		return
	}

	room.Mu.Lock()
	if room.RevealStage >= len(room.RevealPools) {
		room.Mu.Unlock()
		return
	}
	stage := room.RevealStage
	ids := room.RevealPools[stage]
	total := len(room.RevealPools)
	room.RevealStage++
	room.Mu.Unlock()

	s.gw.Broadcast(room, internal.Message[internal.PoolRevealData]{
		Type: internal.EventPoolReveal,
		Data: internal.PoolRevealData{Stage: stage, Total: total, SongIDs: ids},
	})
}

// ===================== Playback pass-throughs =====================

func (s *Service) SkipSong(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdSkipSong) {
		return
	}
	s.sched.Advance(room, "skip")
}

func (s *Service) PreviousSong(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdPreviousSong) {
		return
	}
	s.sched.Previous(room)
}

func (s *Service) PauseGame(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdPauseGame) {
		return
	}
	s.sched.Pause(room)
}

func (s *Service) ResumeGame(room *internal.Room, player *internal.Player) {
	if !s.requireHost(room, player, internal.CmdResumeGame) {
		return
	}
	s.sched.Resume(room)
}

func (s *Service) SetShuffle(room *internal.Room, player *internal.Player, data internal.SetShuffleData) {
	if !s.requireHost(room, player, internal.CmdSetShuffle) {
		return
	}
	if err := s.controller.SetShuffle(room.Context, data.Enabled); err != nil {
		s.warnPlayback(player, "shuffle_failed", err)
	}
}

func (s *Service) SetVolume(room *internal.Room, player *internal.Player, data internal.SetVolumeData) {
	if !s.requireHost(room, player, internal.CmdSetVolume) {
		return
	}
	if err := s.controller.SetVolume(room.Context, data.Percent); err != nil {
		s.warnPlayback(player, "volume_failed", err)
	}
}

func (s *Service) Seek(room *internal.Room, player *internal.Player, data internal.SeekData) {
	if !s.requireHost(room, player, internal.CmdSeek) {
		return
	}
	if err := s.controller.Seek(room.Context, data.PositionMs); err != nil {
		s.warnPlayback(player, "seek_failed", err)
	}
}

func (s *Service) warnPlayback(player *internal.Player, code string, err error) {
	telemetry.PlaybackErrorsTotal.WithLabelValues(code).Inc()
	s.log.Warn().Err(err).Str("code", code).Msg("playback control failed")
	_ = s.gw.Send(player, internal.Message[internal.PlaybackIssueData]{
		Type: internal.EventPlaybackWarning,
		Data: internal.PlaybackIssueData{Code: code, Message: err.Error()},
	})
}

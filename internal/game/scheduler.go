package game

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/playback"
	"github.com/scythe504/tunebingo-backend/internal/telemetry"
)

// Scheduler drives snippet playback: it arms the advance timer, runs the
// stall watchdog, and owns every transition between songs. The cardinal rule
// is cancel-before-arm: a room never has two live advance paths, so manual
// skips, timer fires and watchdog recoveries cannot double-advance.
type Scheduler struct {
	gw         Gateway
	controller playback.Controller
	devices    *playback.DeviceStore
	log        zerolog.Logger

	// Monotonic arm counter; callbacks from a superseded arm compare against
	// the handle's epoch and bail.
	epoch atomic.Uint64
}

func NewScheduler(gw Gateway, controller playback.Controller, devices *playback.DeviceStore, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		gw:         gw,
		controller: controller,
		devices:    devices,
		log:        logger.With().Str("component", "scheduler").Logger(),
	}
}

// advanceBuffer is how far before the snippet end the advance timer fires:
// 5% of the snippet, capped at 500ms.
func advanceBuffer(snippet time.Duration) time.Duration {
	buf := snippet / 20
	if buf > internal.MaxAdvanceBuffer {
		buf = internal.MaxAdvanceBuffer
	}
	return buf
}

// stallPollInterval is snippet/6 clamped to [2.5s, 5s]: frequent enough to
// catch a stall within one snippet, slow enough to stay inside API budgets.
func stallPollInterval(snippet time.Duration) time.Duration {
	interval := snippet / 6
	if interval < internal.MinStallPollInterval {
		interval = internal.MinStallPollInterval
	}
	if interval > internal.MaxStallPollInterval {
		interval = internal.MaxStallPollInterval
	}
	return interval
}

// StartSong issues playback for the song at index, arms the advance timer and
// the stall watchdog, and broadcasts the now-playing event. With no locked
// device it fails fast: the room stays in its last good state. The playing
// check under the lock keeps an in-flight advance from resurrecting a room
// that was paused, ended or reset after the advance passed its own checks.
func (sch *Scheduler) StartSong(room *internal.Room, index int) {
	deviceID, err := sch.devices.LockedDevice()
	if err != nil {
		telemetry.PlaybackErrorsTotal.WithLabelValues("no_locked_device").Inc()
		sch.log.Error().Str("room_id", room.Id).Msg("no locked device, refusing to start playback")
		sch.CancelTimers(room)
		sch.gw.Broadcast(room, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackError,
			Data: internal.PlaybackIssueData{Code: "no_locked_device", Message: "no playback device is locked in"},
		})
		return
	}

	room.Mu.Lock()
	if room.State != internal.StatePlaying {
		room.Mu.Unlock()
		return
	}
	if index < 0 || index >= len(room.Sequence) {
		room.Mu.Unlock()
		return
	}
	snippet := time.Duration(room.SnippetSeconds) * time.Second
	handle := sch.armLocked(room, snippet)
	room.CurrentIndex = index
	song := room.Sequence[index]
	total := len(room.Sequence)
	pre := room.PreQueue
	var upcoming []internal.Song
	if pre.Enabled {
		end := index + 1 + pre.Window
		if end > total {
			end = total
		}
		upcoming = append(upcoming, room.Sequence[index+1:end]...)
	}
	ctx := room.Context
	room.Mu.Unlock()

	// Deterministic device mode: the game owns the order, not the device.
	if err := sch.controller.SetShuffle(ctx, false); err != nil {
		sch.log.Debug().Err(err).Msg("disable shuffle failed")
	}
	if err := sch.controller.SetRepeat(ctx, "off"); err != nil {
		sch.log.Debug().Err(err).Msg("disable repeat failed")
	}

	if err := sch.controller.Play(ctx, deviceID, song.ID, 0); err != nil {
		// Timers are already armed, so this resolves as a controlled delayed
		// retry: the watchdog or the advance timer moves the round along.
		telemetry.PlaybackErrorsTotal.WithLabelValues("play").Inc()
		sch.log.Warn().Err(err).
			Str("room_id", room.Id).
			Str("song_id", song.ID).
			Msg("play failed, leaving recovery to the watchdog")
		sch.gw.Broadcast(room, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackWarning,
			Data: internal.PlaybackIssueData{Code: "play_failed", Message: err.Error()},
		})
	}

	for _, next := range upcoming {
		if err := sch.controller.Queue(ctx, next.ID); err != nil {
			sch.log.Warn().Err(err).Str("song_id", next.ID).Msg("pre-queue failed")
			break
		}
	}

	sch.log.Info().
		Str("room_id", room.Id).
		Str("song_id", song.ID).
		Int("index", index).
		Int("total", total).
		Uint64("epoch", handle.Epoch).
		Msg("song started")

	sch.gw.Broadcast(room, internal.Message[internal.SongPlayingData]{
		Type: internal.EventSongPlaying,
		Data: internal.SongPlayingData{
			SongID:         song.ID,
			Name:           song.Name,
			Artist:         song.Artist,
			SnippetSeconds: int(snippet / time.Second),
			Index:          index,
			Total:          total,
		},
	})

	go sch.watchAdvance(room, handle.AdvanceCtx, handle.Epoch)
	go sch.pollStall(handle.PollCtx, room, handle.Epoch, song.ID, deviceID, snippet, handle.StartedAt)
}

// armLocked cancels any live timers and installs a fresh handle. Caller holds
// the write lock.
func (sch *Scheduler) armLocked(room *internal.Room, snippet time.Duration) *internal.SchedulerHandle {
	cancelTimersLocked(room)

	advCtx, advCancel := context.WithTimeout(room.Context, snippet-advanceBuffer(snippet))
	pollCtx, pollCancel := context.WithCancel(room.Context)
	handle := &internal.SchedulerHandle{
		AdvanceCtx:    advCtx,
		AdvanceCancel: advCancel,
		PollCtx:       pollCtx,
		PollCancel:    pollCancel,
		Epoch:         sch.epoch.Add(1),
		StartedAt:     time.Now(),
	}
	room.Sched = handle
	return handle
}

// CancelTimers tears down the room's advance timer and stall watchdog.
func (sch *Scheduler) CancelTimers(room *internal.Room) {
	room.Mu.Lock()
	cancelTimersLocked(room)
	room.Mu.Unlock()
}

func cancelTimersLocked(room *internal.Room) {
	if room.Sched == nil {
		return
	}
	room.Sched.AdvanceCancel()
	room.Sched.PollCancel()
	room.Sched = nil
}

// watchAdvance blocks until the advance deadline and moves to the next song.
// A cancelled context means this arm was superseded; it exits silently.
func (sch *Scheduler) watchAdvance(room *internal.Room, ctx context.Context, epoch uint64) {
	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		return
	}
	sch.advance(room, "timer", epoch, true)
}

// Advance moves the room to the next song immediately (host skip).
func (sch *Scheduler) Advance(room *internal.Room, reason string) {
	sch.advance(room, reason, 0, false)
}

func (sch *Scheduler) advance(room *internal.Room, reason string, epoch uint64, checkEpoch bool) {
	room.Mu.Lock()
	if checkEpoch && (room.Sched == nil || room.Sched.Epoch != epoch) {
		room.Mu.Unlock()
		return
	}
	if room.State != internal.StatePlaying {
		room.Mu.Unlock()
		return
	}
	cancelTimersLocked(room)
	current := room.CurrentIndex
	next := current + 1
	total := len(room.Sequence)
	repeat := room.RepeatSong
	room.Mu.Unlock()

	telemetry.SongAdvancesTotal.WithLabelValues(reason).Inc()

	if next >= total {
		if repeat {
			sch.StartSong(room, current)
			return
		}
		sch.EndRound(room, "sequence_complete")
		return
	}
	sch.StartSong(room, next)
}

// Previous restarts the prior song (or the first one when already there).
func (sch *Scheduler) Previous(room *internal.Room) {
	room.Mu.Lock()
	if room.State != internal.StatePlaying {
		room.Mu.Unlock()
		return
	}
	cancelTimersLocked(room)
	prev := room.CurrentIndex - 1
	if prev < 0 {
		prev = 0
	}
	room.Mu.Unlock()

	telemetry.SongAdvancesTotal.WithLabelValues("previous").Inc()
	sch.StartSong(room, prev)
}

// Pause cancels the timers first, then pauses the device, so a pause issued
// just before the advance deadline cannot race into the next song.
func (sch *Scheduler) Pause(room *internal.Room) {
	room.Mu.Lock()
	if room.State != internal.StatePlaying {
		room.Mu.Unlock()
		return
	}
	cancelTimersLocked(room)
	room.State = internal.StatePaused
	snap := room.Snapshot()
	ctx := room.Context
	room.Mu.Unlock()

	if err := sch.controller.Pause(ctx); err != nil {
		telemetry.PlaybackErrorsTotal.WithLabelValues("pause").Inc()
		sch.log.Warn().Err(err).Str("room_id", room.Id).Msg("device pause failed")
	}

	sch.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventGamePaused,
		Data: snap,
	})
}

// Resume continues the current song from where the device left off and
// re-arms the timers for a full snippet window. The drift is deliberate:
// coarse timing is acceptable, a truncated song is not.
func (sch *Scheduler) Resume(room *internal.Room) {
	deviceID, err := sch.devices.LockedDevice()
	if err != nil {
		sch.gw.Broadcast(room, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackError,
			Data: internal.PlaybackIssueData{Code: "no_locked_device", Message: "no playback device is locked in"},
		})
		return
	}

	room.Mu.Lock()
	if room.State != internal.StatePaused {
		room.Mu.Unlock()
		return
	}
	song := room.CurrentSong()
	if song == nil {
		room.Mu.Unlock()
		return
	}
	room.State = internal.StatePlaying
	snippet := time.Duration(room.SnippetSeconds) * time.Second
	handle := sch.armLocked(room, snippet)
	snap := room.Snapshot()
	ctx := room.Context
	room.Mu.Unlock()

	if err := sch.controller.Resume(ctx, deviceID); err != nil {
		telemetry.PlaybackErrorsTotal.WithLabelValues("resume").Inc()
		sch.log.Warn().Err(err).Str("room_id", room.Id).Msg("device resume failed")
		sch.gw.Broadcast(room, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackWarning,
			Data: internal.PlaybackIssueData{Code: "resume_failed", Message: err.Error()},
		})
	}

	sch.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventGameResumed,
		Data: snap,
	})

	go sch.watchAdvance(room, handle.AdvanceCtx, handle.Epoch)
	go sch.pollStall(handle.PollCtx, room, handle.Epoch, song.ID, deviceID, snippet, handle.StartedAt)
}

// EndRound stops the timers, pauses the device and marks the round ended.
func (sch *Scheduler) EndRound(room *internal.Room, reason string) {
	room.Mu.Lock()
	cancelTimersLocked(room)
	alreadyEnded := room.State == internal.StateEnded
	room.State = internal.StateEnded
	snap := room.Snapshot()
	ctx := room.Context
	room.Mu.Unlock()

	if alreadyEnded {
		return
	}

	if err := sch.controller.Pause(ctx); err != nil {
		sch.log.Warn().Err(err).Str("room_id", room.Id).Msg("pause at round end failed")
	}

	sch.log.Info().Str("room_id", room.Id).Str("reason", reason).Msg("round ended")

	sch.gw.Broadcast(room, internal.Message[internal.GameStateData]{
		Type: internal.EventGameEnded,
		Data: snap,
	})
}

// ===================== Stall watchdog =====================

// pollState is the per-arm watchdog memory: consecutive not-playing polls and
// whether the one-time early-failure check already ran.
type pollState struct {
	notPlaying int
	earlyDone  bool
}

func (sch *Scheduler) pollStall(ctx context.Context, room *internal.Room, epoch uint64, songID, deviceID string, snippet time.Duration, startedAt time.Time) {
	ticker := time.NewTicker(stallPollInterval(snippet))
	defer ticker.Stop()

	st := &pollState{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sch.pollOnce(ctx, room, epoch, songID, deviceID, snippet, startedAt, st) {
				return
			}
		}
	}
}

// pollOnce runs one watchdog check. Returns true when this arm is finished,
// either because it was superseded or because it triggered an advance.
//
// Recovery ladder: the first not-playing poll issues a resume; a second
// consecutive one gives up and force-advances. Query errors are treated as
// transient and do not count against the ladder.
func (sch *Scheduler) pollOnce(ctx context.Context, room *internal.Room, epoch uint64, songID, deviceID string, snippet time.Duration, startedAt time.Time, st *pollState) bool {
	room.Mu.RLock()
	live := room.Sched != nil && room.Sched.Epoch == epoch && room.State == internal.StatePlaying
	room.Mu.RUnlock()
	if !live {
		return true
	}

	state, err := sch.controller.State(ctx)
	if err != nil {
		sch.log.Warn().Err(err).Str("room_id", room.Id).Msg("playback state query failed")
		return false
	}

	if !state.IsPlaying {
		st.notPlaying++
		if st.notPlaying == 1 {
			telemetry.StallRecoveriesTotal.Inc()
			sch.log.Warn().Str("room_id", room.Id).Str("song_id", songID).Msg("playback stalled, attempting resume")
			if rerr := sch.controller.Resume(ctx, deviceID); rerr != nil {
				sch.log.Warn().Err(rerr).Str("room_id", room.Id).Msg("stall resume failed")
			}
			return false
		}
		telemetry.PlaybackErrorsTotal.WithLabelValues("stall").Inc()
		sch.log.Error().Str("room_id", room.Id).Str("song_id", songID).Msg("stall persisted after resume, force-advancing")
		sch.gw.Broadcast(room, internal.Message[internal.PlaybackIssueData]{
			Type: internal.EventPlaybackWarning,
			Data: internal.PlaybackIssueData{Code: "stall", Message: internal.ErrPlaybackStalled.Error()},
		})
		sch.advance(room, "stall", epoch, true)
		return true
	}
	st.notPlaying = 0

	progress := time.Duration(state.ProgressMs) * time.Millisecond

	// One-time early-failure check: near-zero progress (or a different song)
	// a few seconds in means the device silently failed to start this one.
	if !st.earlyDone && time.Since(startedAt) > internal.EarlyFailureAfter {
		st.earlyDone = true
		if state.SongID != songID || progress < internal.EarlyFailureProgress {
			telemetry.PlaybackErrorsTotal.WithLabelValues("early_failure").Inc()
			sch.log.Warn().
				Str("room_id", room.Id).
				Str("expected", songID).
				Str("actual", state.SongID).
				Dur("progress", progress).
				Msg("song failed to start, force-advancing")
			sch.advance(room, "early_failure", epoch, true)
			return true
		}
	}

	// Overrun guard: the advance timer should have fired by now, so playback
	// this close to the snippet end means the timer path was lost.
	if state.SongID == songID && progress >= snippet-internal.OverrunGuardWindow {
		sch.log.Warn().Str("room_id", room.Id).Str("song_id", songID).Dur("progress", progress).Msg("snippet overrun, force-advancing")
		sch.advance(room, "overrun", epoch, true)
		return true
	}

	return false
}

package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound command types. The websocket handler switches exhaustively over
// this set; unknown types are logged and dropped.
const (
	CmdFinalizeMix  = "finalize_mix"
	CmdSetPattern   = "set_pattern"
	CmdStartGame    = "start_game"
	CmdEndGame      = "end_game"
	CmdResetGame    = "reset_game"
	CmdNewRound     = "new_round"
	CmdSetLockJoins = "set_lock_joins"
	CmdSetPreQueue  = "set_prequeue"
	CmdBingo        = "bingo"
	CmdToggleSquare = "toggle_square"
	CmdSkipSong     = "skip_song"
	CmdPauseGame    = "pause_game"
	CmdResumeGame   = "resume_game"
	CmdPreviousSong = "previous_song"
	CmdSetShuffle   = "set_shuffle"
	CmdSetVolume    = "set_volume"
	CmdSeek         = "seek"
	CmdRevealCall   = "reveal_call"
	CmdForceRefresh = "force_refresh"
	CmdResync       = "resync"
)

// Outbound event types.
const (
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventWelcome         = "welcome_msg"
	EventGameStarted     = "game_started"
	EventSongPlaying     = "song_playing"
	EventBingoCard       = "bingo_card"
	EventBingoCalled     = "bingo_called"
	EventMixFinalized    = "mix_finalized"
	EventGameEnded       = "game_ended"
	EventGamePaused      = "game_paused"
	EventGameResumed     = "game_resumed"
	EventGameReset       = "game_reset"
	EventBingoRejected   = "bingo_rejected"
	EventRoundReset      = "round_reset"
	EventPatternUpdated  = "pattern_updated"
	EventPlaybackWarning = "playback_warning"
	EventPlaybackError   = "playback_error"
	EventLockJoins       = "lock_joins_updated"
	EventPreQueue        = "prequeue_updated"
	EventPoolReveal      = "pool_reveal"
	EventForceRefresh    = "force_refresh"
	EventRoomLocked      = "room_locked"
	EventRoomFull        = "room_full"
	EventDealFailed      = "deal_failed"
	EventHostChanged     = "host_changed"
)

// --- inbound payloads ---

type FinalizeMixData struct {
	Pools     []SourcePool `json:"pools"`
	HostOrder []Song       `json:"host_order,omitempty"`
}

type SetPatternData struct {
	Pattern Pattern `json:"pattern"`
}

type ToggleSquareData struct {
	Position string `json:"position"`
}

type SetLockJoinsData struct {
	Locked bool `json:"locked"`
}

type SetPreQueueData struct {
	Enabled bool `json:"enabled"`
	Window  int  `json:"window"`
}

type SetShuffleData struct {
	Enabled bool `json:"enabled"`
}

type SetVolumeData struct {
	Percent int `json:"percent"`
}

type SeekData struct {
	PositionMs int `json:"position_ms"`
}

// --- outbound payloads ---

// WelcomeData is the full-state push sent on join and on resync. Sending it
// twice is harmless; clients replace local state wholesale.
type WelcomeData struct {
	Player *Player       `json:"player"`
	Game   GameStateData `json:"game"`
	Card   *BingoCard    `json:"card,omitempty"`
}

type PlayerJoinedData struct {
	Player      *Player `json:"player"`
	PlayerCount int     `json:"player_count"`
}

type PlayerLeftData struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"player_count"`
}

type SongPlayingData struct {
	SongID         string `json:"song_id"`
	Name           string `json:"name"`
	Artist         string `json:"artist"`
	SnippetSeconds int    `json:"snippet_seconds"`
	Index          int    `json:"index"`
	Total          int    `json:"total"`
}

type MixFinalizedData struct {
	Mode      DealMode `json:"mode"`
	PoolSize  int      `json:"pool_size"`
	PoolIDs   []string `json:"pool_ids,omitempty"` // oneby75 payload: exactly the 75 ids
	PoolCount int      `json:"pool_count"`
}

type BingoCalledData struct {
	Winner  string   `json:"winner"`
	Winners []Winner `json:"winners"`
}

type PatternUpdatedData struct {
	Pattern Pattern `json:"pattern"`
}

type LockJoinsData struct {
	Locked bool `json:"locked"`
}

type PoolRevealData struct {
	Stage   int      `json:"stage"`
	Total   int      `json:"total"`
	SongIDs []string `json:"song_ids"`
}

type PlaybackIssueData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DealFailedData struct {
	Required  int `json:"required"`
	Available int `json:"available"`
}

type HostChangedData struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

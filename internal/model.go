package internal

import (
	"context"
	"sync"
	"time"
)

const (
	CardRows = 5
	CardCols = 5
	CardSize = CardRows * CardCols

	// Dealing mode thresholds
	OneByPoolSize   = 75
	ColumnPoolCount = 5
	ColumnPoolSize  = 15

	DefaultSnippetSeconds = 30

	// Advance timer fires this much before the snippet ends, whichever is
	// smaller: 5% of the snippet or 500ms.
	MaxAdvanceBuffer = 500 * time.Millisecond

	// Stall poll interval bounds
	MinStallPollInterval = 2500 * time.Millisecond
	MaxStallPollInterval = 5 * time.Second

	// Overrun guard: force-advance once device progress is within this
	// distance of the snippet end while the expected track is still active.
	OverrunGuardWindow = 300 * time.Millisecond

	// Early-failure check: a song that shows near-zero progress this long
	// after being started is considered silently failed.
	EarlyFailureAfter    = 4 * time.Second
	EarlyFailureProgress = 500 * time.Millisecond
)

type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
	StatePaused  GameState = "paused"
	StateEnded   GameState = "ended"
)

type Pattern string

const (
	PatternFullCard    Pattern = "full_card"
	PatternFourCorners Pattern = "four_corners"
	PatternX           Pattern = "x"
	PatternLine        Pattern = "line"
)

func (p Pattern) Valid() bool {
	switch p {
	case PatternFullCard, PatternFourCorners, PatternX, PatternLine:
		return true
	}
	return false
}

type DealMode string

const (
	DealModeOneBy75  DealMode = "oneby75"
	DealModeFiveBy15 DealMode = "fiveby15"
	DealModeFallback DealMode = "fallback"
)

// Song identity is the ID; name and artist are display-only.
type Song struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// SourcePool is a named song collection used only while dealing. It is not
// retained on the room; only the derived deck and play sequence are cached.
type SourcePool struct {
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// Deck is the fixed dealing universe cached on a room after mix finalize so
// that late joiners draw from the same pool as everyone else. The algorithms
// that build and sample it live in the dealer package.
type Deck struct {
	Mode    DealMode `json:"mode"`
	Pool    []Song   `json:"pool,omitempty"`    // oneby75 and fallback modes
	Columns [][]Song `json:"columns,omitempty"` // fiveby15 mode, one fixed column per source pool
}

type Winner struct {
	Name      string `json:"name"`
	ClaimedAt int64  `json:"claimed_at_ms"`
}

type PreQueueConfig struct {
	Enabled bool `json:"enabled"`
	Window  int  `json:"window"`
}

// SchedulerHandle holds the cancellation state for a room's advance timer and
// stall poll. It is owned exclusively by the playback scheduler: both timers
// are always cancelled before a new one is armed, so no two advance paths can
// coexist for one room. Epoch invalidates callbacks from a superseded arm.
type SchedulerHandle struct {
	AdvanceCtx    context.Context
	AdvanceCancel context.CancelFunc
	PollCtx       context.Context
	PollCancel    context.CancelFunc
	Epoch         uint64
	StartedAt     time.Time
}

type Room struct {
	Id string

	// Game state
	State          GameState `json:"state"`
	Sequence       []Song    `json:"-"`
	CurrentIndex   int       `json:"current_index"`
	SnippetSeconds int       `json:"snippet_seconds"`
	Pattern        Pattern   `json:"pattern"`
	Round          int       `json:"round"`
	RepeatSong     bool      `json:"repeat_song"`

	// Winners for the current round, append-only, cleared on new round.
	Winners []Winner `json:"winners"`

	// Join policy
	LockJoins bool           `json:"lock_joins"`
	PreQueue  PreQueueConfig `json:"prequeue"`

	// Membership, keyed by connection id.
	Players map[string]*Player `json:"-"`

	// Cards keyed by stable client id so a reconnecting client recovers the
	// exact card it held before disconnecting.
	CardsByClient map[string]*BingoCard `json:"-"`

	// Dealing state cached at finalize/start; nil until a mix is finalized.
	Deck        *Deck      `json:"-"`
	RevealPools [][]string `json:"-"`
	RevealStage int        `json:"-"`

	// Monotonic join counter; host reassignment picks the lowest value.
	JoinSeq int `json:"-"`

	// Timers, owned by the playback scheduler.
	Sched *SchedulerHandle `json:"-"`

	Mu sync.RWMutex `json:"-"`

	Context context.Context    `json:"-"`
	Cancel  context.CancelFunc `json:"-"`
}

// GameStateData is the summarized room state pushed on welcome and resync.
type GameStateData struct {
	RoomID         string         `json:"room_id"`
	State          GameState      `json:"state"`
	Pattern        Pattern        `json:"pattern"`
	Round          int            `json:"round"`
	CurrentIndex   int            `json:"current_index"`
	TotalSongs     int            `json:"total_songs"`
	SnippetSeconds int            `json:"snippet_seconds"`
	CurrentSong    *Song          `json:"current_song,omitempty"`
	Winners        []Winner       `json:"winners"`
	PlayerCount    int            `json:"player_count"`
	LockJoins      bool           `json:"lock_joins"`
	PreQueue       PreQueueConfig `json:"prequeue"`
}

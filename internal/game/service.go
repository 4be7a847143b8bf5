// Package game implements the session core: room membership, the game state
// machine, card dealing orchestration and the playback scheduler.
package game

import (
	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
	"github.com/scythe504/tunebingo-backend/internal/playback"
)

// Service ties the room store, the transport gateway and the playback
// controller together. All websocket commands land here.
type Service struct {
	store      *Store
	gw         Gateway
	controller playback.Controller
	devices    *playback.DeviceStore
	sched      *Scheduler

	// Default snippet length for newly created rooms, in seconds.
	snippetSeconds int

	log zerolog.Logger
}

func NewService(store *Store, gw Gateway, controller playback.Controller, devices *playback.DeviceStore, snippetSeconds int, logger zerolog.Logger) *Service {
	return &Service{
		store:          store,
		gw:             gw,
		controller:     controller,
		devices:        devices,
		sched:          NewScheduler(gw, controller, devices, logger),
		snippetSeconds: snippetSeconds,
		log:            logger.With().Str("component", "game").Logger(),
	}
}

func (s *Service) Store() *Store { return s.store }

// requireHost gates host-only commands. Non-host attempts are logged and
// dropped rather than erroring the connection.
func (s *Service) requireHost(room *internal.Room, player *internal.Player, cmd string) bool {
	if player != nil && player.IsHost {
		return true
	}
	s.log.Warn().
		Str("room_id", room.Id).
		Str("player_id", playerID(player)).
		Str("cmd", cmd).
		Msg("host-only command from non-host, dropping")
	return false
}

func playerID(p *internal.Player) string {
	if p == nil {
		return ""
	}
	return p.Id
}

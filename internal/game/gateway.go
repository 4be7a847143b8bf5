package game

import (
	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
)

// Gateway is the real-time transport boundary. The core only needs three
// capabilities from it: broadcast to a room, broadcast to a room minus one
// connection, and send to a single connection.
type Gateway interface {
	Broadcast(room *internal.Room, msg any)
	BroadcastExcept(room *internal.Room, msg any, except *internal.Player)
	Send(player *internal.Player, msg any) error
}

// WSGateway delivers room events over gorilla websocket connections.
type WSGateway struct {
	log zerolog.Logger
}

func NewWSGateway(logger zerolog.Logger) *WSGateway {
	return &WSGateway{log: logger.With().Str("component", "gateway").Logger()}
}

func (g *WSGateway) Broadcast(room *internal.Room, msg any) {
	g.BroadcastExcept(room, msg, nil)
}

// BroadcastExcept snapshots the player set under a read lock and writes with
// no room lock held, so a slow connection cannot stall room mutations. A
// failed write is only logged: the connection's read loop observes the close
// and detaches the player under the room lock.
func (g *WSGateway) BroadcastExcept(room *internal.Room, msg any, except *internal.Player) {
	room.Mu.RLock()
	players := make([]*internal.Player, 0, len(room.Players))
	for _, player := range room.Players {
		if player != except {
			players = append(players, player)
		}
	}
	roomID := room.Id
	room.Mu.RUnlock()

	for _, player := range players {
		if err := player.SafeWriteJSON(msg); err != nil {
			g.log.Warn().Err(err).
				Str("room_id", roomID).
				Str("player_id", player.Id).
				Msg("broadcast write failed")
		}
	}
}

func (g *WSGateway) Send(player *internal.Player, msg any) error {
	if err := player.SafeWriteJSON(msg); err != nil {
		g.log.Warn().Err(err).Str("player_id", player.Id).Msg("direct write failed")
		return err
	}
	return nil
}

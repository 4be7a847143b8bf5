package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/scythe504/tunebingo-backend/internal"
)

// MaxPlayersPerRoom bounds non-host, non-display connections per room.
const MaxPlayersPerRoom = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and joins the player into the room
// from the URL. Identity comes from query parameters: name, clientId (stable
// across reconnects) and role (host | display | empty for player).
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		name = "Player"
	}
	role := query.Get("role")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}

	player := &internal.Player{
		Id:        uuid.NewString(),
		Conn:      conn,
		Name:      name,
		ClientID:  query.Get("clientId"),
		IsHost:    role == "host",
		IsDisplay: role == "display",
	}
	if player.ClientID == "" {
		player.ClientID = player.Id
	}

	room, err := s.Join(roomID, player)
	if err != nil {
		switch {
		case errors.Is(err, internal.ErrRoomLocked):
			_ = conn.WriteJSON(internal.Message[internal.LockJoinsData]{
				Type: internal.EventRoomLocked,
				Data: internal.LockJoinsData{Locked: true},
			})
		case errors.Is(err, internal.ErrRoomFull):
			_ = conn.WriteJSON(internal.Message[internal.PlaybackIssueData]{
				Type: internal.EventRoomFull,
				Data: internal.PlaybackIssueData{Code: "room_full", Message: err.Error()},
			})
		}
		conn.Close()
		return
	}

	go s.readLoop(room, player)
}

func (s *Service) readLoop(room *internal.Room, player *internal.Player) {
	defer func() {
		s.Leave(player)
		player.Conn.Close()
	}()

	for {
		_, raw, err := player.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("room_id", room.Id).Str("player_id", player.Id).Msg("unexpected close")
			}
			return
		}
		s.dispatch(room, player, raw)
	}
}

// dispatch decodes the envelope and routes on the command type. Unknown or
// malformed commands are logged and dropped; they never kill the connection.
func (s *Service) dispatch(room *internal.Room, player *internal.Player, raw []byte) {
	var envelope internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.log.Warn().Err(err).Str("room_id", room.Id).Msg("malformed message")
		return
	}

	switch envelope.Type {
	case internal.CmdFinalizeMix:
		var data internal.FinalizeMixData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.FinalizeMix(room, player, data)

	case internal.CmdSetPattern:
		var data internal.SetPatternData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.SetPattern(room, player, data)

	case internal.CmdStartGame:
		s.StartGame(room, player)

	case internal.CmdEndGame:
		s.EndGame(room, player)

	case internal.CmdResetGame:
		s.ResetGame(room, player)

	case internal.CmdNewRound:
		s.NewRound(room, player)

	case internal.CmdSetLockJoins:
		var data internal.SetLockJoinsData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.SetLockJoins(room, player, data)

	case internal.CmdSetPreQueue:
		var data internal.SetPreQueueData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.SetPreQueue(room, player, data)

	case internal.CmdBingo:
		s.HandleBingo(room, player)

	case internal.CmdToggleSquare:
		var data internal.ToggleSquareData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.HandleToggleSquare(room, player, data)

	case internal.CmdSkipSong:
		s.SkipSong(room, player)

	case internal.CmdPauseGame:
		s.PauseGame(room, player)

	case internal.CmdResumeGame:
		s.ResumeGame(room, player)

	case internal.CmdPreviousSong:
		s.PreviousSong(room, player)

	case internal.CmdSetShuffle:
		var data internal.SetShuffleData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.SetShuffle(room, player, data)

	case internal.CmdSetVolume:
		var data internal.SetVolumeData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.SetVolume(room, player, data)

	case internal.CmdSeek:
		var data internal.SeekData
		if !decode(s, room, envelope.Type, envelope.Data, &data) {
			return
		}
		s.Seek(room, player, data)

	case internal.CmdRevealCall:
		s.RevealCall(room, player)

	case internal.CmdForceRefresh:
		s.ForceRefresh(room, player)

	case internal.CmdResync:
		s.Resync(player)

	default:
		s.log.Warn().Str("room_id", room.Id).Str("type", envelope.Type).Msg("unknown command type")
	}
}

func decode[T any](s *Service, room *internal.Room, cmd string, raw json.RawMessage, out *T) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("room_id", room.Id).Str("cmd", cmd).Msg("malformed command payload")
		return false
	}
	return true
}

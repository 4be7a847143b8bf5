package internal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Player struct {
	Id   string          `json:"id"`
	Conn *websocket.Conn `json:"-"`
	Room *Room           `json:"-"` // Avoid circular reference in JSON
	Name string          `json:"name"`

	// ClientID is a stable, client-supplied identifier that survives
	// reconnects; the connection id does not.
	ClientID string `json:"client_id"`

	IsHost    bool `json:"is_host"`
	IsDisplay bool `json:"is_display"`
	HasWon    bool `json:"has_won"`

	Card *BingoCard `json:"-"`

	JoinOrder   int       `json:"join_order"`
	JoinedAt    time.Time `json:"joined_at"`
	IsConnected bool      `json:"is_connected"`

	Mu sync.Mutex `json:"-"`
}

func (p *Player) ResetRoundState() {
	p.HasWon = false
	p.Card = nil
}

// ToPublicPlayer strips the connection and room references so the struct is
// safe to embed in broadcast payloads.
func (p *Player) ToPublicPlayer() *Player {
	return &Player{
		Id:          p.Id,
		Name:        p.Name,
		ClientID:    p.ClientID,
		IsHost:      p.IsHost,
		IsDisplay:   p.IsDisplay,
		HasWon:      p.HasWon,
		JoinOrder:   p.JoinOrder,
		JoinedAt:    p.JoinedAt,
		IsConnected: p.IsConnected,
	}
}

// SafeWriteJSON serializes writes to the underlying connection; gorilla
// connections do not tolerate concurrent writers.
func (p *Player) SafeWriteJSON(v any) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.Conn == nil {
		return ErrNoConnection
	}
	return p.Conn.WriteJSON(v)
}

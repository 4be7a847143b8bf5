package game

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal"
)

// A failed broadcast write is logged and nothing more: membership state is
// owned by the connection's read loop, which detaches the player under the
// room lock when the socket actually closes.
func TestBroadcastWriteFailureLeavesMembershipAlone(t *testing.T) {
	gw := NewWSGateway(zerolog.Nop())
	room := testRoom(nil)
	defer room.Cancel()

	p := testPlayer("ghost", "client-ghost", false)
	p.IsConnected = true
	room.Players[p.Id] = p

	// No socket behind the player, so the write fails.
	gw.Broadcast(room, internal.Message[struct{}]{Type: internal.EventForceRefresh})

	room.Mu.RLock()
	defer room.Mu.RUnlock()
	if !p.IsConnected {
		t.Fatal("broadcast write failure flipped the connected flag")
	}
	if _, ok := room.Players[p.Id]; !ok {
		t.Fatal("broadcast write failure removed the player")
	}
}

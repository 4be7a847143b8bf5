package internal

// Methods (Room Struct)

// GetPlayerCount counts connected players, excluding the host and any
// display-only connection. This is the number the room lookup endpoint and
// join broadcasts report.
func (r *Room) GetPlayerCount() int {
	count := 0
	for _, player := range r.Players {
		if player.IsConnected && !player.IsHost && !player.IsDisplay {
			count++
		}
	}
	return count
}

// Host returns the connection currently marked host, or nil.
func (r *Room) Host() *Player {
	for _, player := range r.Players {
		if player.IsHost {
			return player
		}
	}
	return nil
}

// ClaimHost marks the given connection as host, demoting any prior holder so
// at most one connection carries the flag.
func (r *Room) ClaimHost(p *Player) {
	for _, other := range r.Players {
		if other.IsHost && other.Id != p.Id {
			other.IsHost = false
		}
	}
	p.IsHost = true
}

// NextHost picks the remaining non-display player with the lowest join order.
// The rule is deterministic on purpose; host succession must not depend on
// map iteration order.
func (r *Room) NextHost() *Player {
	var next *Player
	for _, player := range r.Players {
		if player.IsDisplay || !player.IsConnected {
			continue
		}
		if next == nil || player.JoinOrder < next.JoinOrder {
			next = player
		}
	}
	return next
}

// CurrentSong returns the song at the current index, or nil when the
// sequence is empty or the index is out of range.
func (r *Room) CurrentSong() *Song {
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Sequence) {
		return nil
	}
	song := r.Sequence[r.CurrentIndex]
	return &song
}

// IsWinner reports whether the named player is already on the winners list.
func (r *Room) IsWinner(name string) bool {
	for _, w := range r.Winners {
		if w.Name == name {
			return true
		}
	}
	return false
}

// Snapshot builds the summarized state pushed on welcome, resync and the
// room lookup endpoint. Caller must hold at least a read lock.
func (r *Room) Snapshot() GameStateData {
	return GameStateData{
		RoomID:         r.Id,
		State:          r.State,
		Pattern:        r.Pattern,
		Round:          r.Round,
		CurrentIndex:   r.CurrentIndex,
		TotalSongs:     len(r.Sequence),
		SnippetSeconds: r.SnippetSeconds,
		CurrentSong:    r.CurrentSong(),
		Winners:        append([]Winner(nil), r.Winners...),
		PlayerCount:    r.GetPlayerCount(),
		LockJoins:      r.LockJoins,
		PreQueue:       r.PreQueue,
	}
}

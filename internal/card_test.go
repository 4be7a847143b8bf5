package internal

import (
	"fmt"
	"testing"
)

func cardSongs() []Song {
	songs := make([]Song, CardSize)
	for i := range songs {
		songs[i] = Song{ID: fmt.Sprintf("s-%02d", i), Name: fmt.Sprintf("Song %d", i)}
	}
	return songs
}

func markAll(card *BingoCard, positions ...string) {
	for _, pos := range positions {
		if sq, ok := card.Squares[pos]; ok {
			sq.Marked = true
		}
	}
}

func TestNewBingoCardLayout(t *testing.T) {
	card := NewBingoCard("alice", cardSongs())
	if len(card.Squares) != CardSize {
		t.Fatalf("squares = %d, want %d", len(card.Squares), CardSize)
	}
	// Row-major fill: position r-c holds song index r*5+c.
	sq, ok := card.Squares["2-3"]
	if !ok || sq.Song.ID != "s-13" {
		t.Fatalf("square 2-3 = %+v, want s-13", sq)
	}
}

func TestToggleSquare(t *testing.T) {
	card := NewBingoCard("alice", cardSongs())

	marked, ok := card.ToggleSquare("1-1")
	if !ok || !marked {
		t.Fatal("first toggle should mark")
	}
	marked, ok = card.ToggleSquare("1-1")
	if !ok || marked {
		t.Fatal("second toggle should unmark")
	}
	if _, ok := card.ToggleSquare("9-9"); ok {
		t.Fatal("unknown position accepted")
	}
}

func TestHasPatternFourCorners(t *testing.T) {
	card := NewBingoCard("alice", cardSongs())
	markAll(card, "0-0", "0-4", "4-0")
	if card.HasPattern(PatternFourCorners) {
		t.Fatal("three corners satisfied four_corners")
	}
	markAll(card, "4-4")
	if !card.HasPattern(PatternFourCorners) {
		t.Fatal("four corners not recognized")
	}
}

func TestHasPatternX(t *testing.T) {
	card := NewBingoCard("alice", cardSongs())
	for i := 0; i < CardRows; i++ {
		markAll(card, PositionKey(i, i), PositionKey(i, CardCols-1-i))
	}
	if !card.HasPattern(PatternX) {
		t.Fatal("both diagonals not recognized as X")
	}

	card.Squares["2-2"].Marked = false
	if card.HasPattern(PatternX) {
		t.Fatal("X satisfied with the center unmarked")
	}
}

func TestHasPatternLine(t *testing.T) {
	cases := []struct {
		name      string
		positions []string
	}{
		{"row", []string{"3-0", "3-1", "3-2", "3-3", "3-4"}},
		{"column", []string{"0-2", "1-2", "2-2", "3-2", "4-2"}},
		{"diagonal", []string{"0-0", "1-1", "2-2", "3-3", "4-4"}},
		{"anti-diagonal", []string{"0-4", "1-3", "2-2", "3-1", "4-0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := NewBingoCard("alice", cardSongs())
			markAll(card, tc.positions[:4]...)
			if card.HasPattern(PatternLine) {
				t.Fatal("incomplete line accepted")
			}
			markAll(card, tc.positions[4])
			if !card.HasPattern(PatternLine) {
				t.Fatal("complete line not recognized")
			}
		})
	}
}

func TestHasPatternFullCard(t *testing.T) {
	card := NewBingoCard("alice", cardSongs())
	for row := 0; row < CardRows; row++ {
		for col := 0; col < CardCols; col++ {
			markAll(card, PositionKey(row, col))
		}
	}
	if !card.HasPattern(PatternFullCard) {
		t.Fatal("fully marked card not recognized")
	}
	card.Squares["4-4"].Marked = false
	if card.HasPattern(PatternFullCard) {
		t.Fatal("full card satisfied with one square unmarked")
	}
}

func TestSongIDsRowMajor(t *testing.T) {
	songs := cardSongs()
	card := NewBingoCard("alice", songs)
	ids := card.SongIDs()
	if len(ids) != CardSize {
		t.Fatalf("ids = %d, want %d", len(ids), CardSize)
	}
	for i, id := range ids {
		if id != songs[i].ID {
			t.Fatalf("ids[%d] = %s, want %s", i, id, songs[i].ID)
		}
	}
}

package internal

import "fmt"

type BingoSquare struct {
	Song   Song `json:"song"`
	Marked bool `json:"marked"`
}

// BingoCard is a player's personal 5x5 song assignment. Squares are keyed by
// row-major "row-col" positions ("0-0" .. "4-4").
type BingoCard struct {
	Owner   string                  `json:"owner"`
	Squares map[string]*BingoSquare `json:"squares"`
}

func PositionKey(row, col int) string {
	return fmt.Sprintf("%d-%d", row, col)
}

func NewBingoCard(owner string, songs []Song) *BingoCard {
	card := &BingoCard{
		Owner:   owner,
		Squares: make(map[string]*BingoSquare, CardSize),
	}
	for i, song := range songs {
		pos := PositionKey(i/CardCols, i%CardCols)
		card.Squares[pos] = &BingoSquare{Song: song}
	}
	return card
}

// ToggleSquare flips the marked flag at the given position and returns the
// new value. Marking is a toggle, not a one-way set, so players can correct
// mistakes. Unknown positions are ignored.
func (c *BingoCard) ToggleSquare(position string) (marked bool, ok bool) {
	sq, exists := c.Squares[position]
	if !exists {
		return false, false
	}
	sq.Marked = !sq.Marked
	return sq.Marked, true
}

// Clone deep-copies the card. Outbound payloads are built from clones taken
// under the room lock so a concurrent toggle cannot mutate a square mid-marshal.
func (c *BingoCard) Clone() *BingoCard {
	if c == nil {
		return nil
	}
	out := &BingoCard{
		Owner:   c.Owner,
		Squares: make(map[string]*BingoSquare, len(c.Squares)),
	}
	for pos, sq := range c.Squares {
		dup := *sq
		out.Squares[pos] = &dup
	}
	return out
}

// HasPattern reports whether the card's marked squares satisfy the pattern.
func (c *BingoCard) HasPattern(pattern Pattern) bool {
	switch pattern {
	case PatternFullCard:
		for row := 0; row < CardRows; row++ {
			for col := 0; col < CardCols; col++ {
				if !c.marked(row, col) {
					return false
				}
			}
		}
		return true

	case PatternFourCorners:
		return c.marked(0, 0) && c.marked(0, CardCols-1) &&
			c.marked(CardRows-1, 0) && c.marked(CardRows-1, CardCols-1)

	case PatternX:
		for i := 0; i < CardRows; i++ {
			if !c.marked(i, i) || !c.marked(i, CardCols-1-i) {
				return false
			}
		}
		return true

	case PatternLine:
		return c.hasCompleteLine()
	}
	return false
}

func (c *BingoCard) marked(row, col int) bool {
	sq, ok := c.Squares[PositionKey(row, col)]
	return ok && sq.Marked
}

// hasCompleteLine checks every row, every column and both diagonals.
func (c *BingoCard) hasCompleteLine() bool {
	for row := 0; row < CardRows; row++ {
		full := true
		for col := 0; col < CardCols; col++ {
			if !c.marked(row, col) {
				full = false
				break
			}
		}
		if full {
			return true
		}
	}
	for col := 0; col < CardCols; col++ {
		full := true
		for row := 0; row < CardRows; row++ {
			if !c.marked(row, col) {
				full = false
				break
			}
		}
		if full {
			return true
		}
	}
	diag, anti := true, true
	for i := 0; i < CardRows; i++ {
		if !c.marked(i, i) {
			diag = false
		}
		if !c.marked(i, CardCols-1-i) {
			anti = false
		}
	}
	return diag || anti
}

// SongIDs returns the card's song identifiers in row-major order.
func (c *BingoCard) SongIDs() []string {
	ids := make([]string, 0, CardSize)
	for row := 0; row < CardRows; row++ {
		for col := 0; col < CardCols; col++ {
			if sq, ok := c.Squares[PositionKey(row, col)]; ok {
				ids = append(ids, sq.Song.ID)
			}
		}
	}
	return ids
}

// Package dealer implements the card-dealing algorithms. Everything here is
// pure: callers hand in source pools and get back a fixed deck plus per-player
// cards, with no room or transport state involved.
package dealer

import (
	"math/rand"

	"github.com/scythe504/tunebingo-backend/internal"
)

// Build derives the fixed dealing universe from one or more source pools.
// Mode selection, in priority order:
//
//  1. single pool with >= 75 unique songs -> "1-by-75": one fixed 75-song
//     pool, every card an independent 25-subset of it
//  2. exactly 5 pools, each >= 15 unique songs -> "5-by-15": one fixed
//     15-song column per pool, cards interleave per-column picks
//  3. otherwise -> fallback: one merged deduplicated pool
//
// hostOrder, when present, is preferred over random sampling so a curated
// sequence survives into the deck. The returned deck is meant to be cached on
// the room: late joiners must draw from the same universe as everyone else.
func Build(pools []internal.SourcePool, hostOrder []internal.Song) (*internal.Deck, error) {
	unique := make([][]internal.Song, len(pools))
	for i, pool := range pools {
		unique[i] = dedupe(pool.Songs)
	}

	if len(unique) == 1 && len(unique[0]) >= internal.OneByPoolSize {
		return buildOneBy75(unique[0], hostOrder), nil
	}

	if len(unique) == internal.ColumnPoolCount && allAtLeast(unique, internal.ColumnPoolSize) {
		return buildFiveBy15(unique), nil
	}

	return buildFallback(unique, hostOrder)
}

func buildOneBy75(songs []internal.Song, hostOrder []internal.Song) *internal.Deck {
	var pool []internal.Song
	if ordered := applyHostOrder(songs, hostOrder); len(ordered) >= internal.OneByPoolSize {
		pool = ordered[:internal.OneByPoolSize]
	} else {
		pool = sample(songs, internal.OneByPoolSize, nil)
	}
	return &internal.Deck{Mode: internal.DealModeOneBy75, Pool: pool}
}

func buildFiveBy15(pools [][]internal.Song) *internal.Deck {
	columns := make([][]internal.Song, internal.ColumnPoolCount)
	for i, pool := range pools {
		columns[i] = sample(pool, internal.ColumnPoolSize, nil)
	}
	return &internal.Deck{Mode: internal.DealModeFiveBy15, Columns: columns}
}

func buildFallback(pools [][]internal.Song, hostOrder []internal.Song) (*internal.Deck, error) {
	merged := dedupe(flatten(pools))
	if len(merged) < internal.CardSize {
		return nil, &internal.InsufficientSongsError{
			Required:  internal.CardSize,
			Available: len(merged),
		}
	}
	if ordered := applyHostOrder(merged, hostOrder); len(ordered) == len(merged) {
		merged = ordered
	} else {
		rand.Shuffle(len(merged), func(i, j int) {
			merged[i], merged[j] = merged[j], merged[i]
		})
	}
	return &internal.Deck{Mode: internal.DealModeFallback, Pool: merged}, nil
}

// Deal draws one fresh 25-song card for a player from the cached deck. Every
// card is an independent sample; the deck itself is never mutated.
func Deal(deck *internal.Deck, owner string) (*internal.BingoCard, error) {
	switch deck.Mode {
	case internal.DealModeOneBy75, internal.DealModeFallback:
		if len(deck.Pool) < internal.CardSize {
			return nil, &internal.InsufficientSongsError{
				Required:  internal.CardSize,
				Available: len(deck.Pool),
			}
		}
		return internal.NewBingoCard(owner, sample(deck.Pool, internal.CardSize, nil)), nil

	case internal.DealModeFiveBy15:
		return dealFromColumns(deck, owner)
	}

	return nil, &internal.InsufficientSongsError{Required: internal.CardSize}
}

// dealFromColumns draws 5 songs per fixed column and interleaves the picks
// column-major into rows, keeping a used-ID set so the same song can never
// appear twice on one card even when source pools overlap.
func dealFromColumns(deck *internal.Deck, owner string) (*internal.BingoCard, error) {
	used := make(map[string]bool, internal.CardSize)
	picks := make([][]internal.Song, internal.ColumnPoolCount)

	for col, column := range deck.Columns {
		picked := sample(column, internal.CardRows, used)
		if len(picked) < internal.CardRows {
			return nil, &internal.InsufficientSongsError{
				Required:  internal.CardSize,
				Available: countDistinct(deck.Columns),
			}
		}
		for _, s := range picked {
			used[s.ID] = true
		}
		picks[col] = picked
	}

	songs := make([]internal.Song, 0, internal.CardSize)
	for row := 0; row < internal.CardRows; row++ {
		for col := 0; col < internal.CardCols; col++ {
			songs = append(songs, picks[col][row])
		}
	}
	return internal.NewBingoCard(owner, songs), nil
}

// PlaySequence derives the room's shuffled play order from the same universe
// the cards were dealt from, so the sequence eventually covers every card.
func PlaySequence(deck *internal.Deck) []internal.Song {
	var songs []internal.Song
	switch deck.Mode {
	case internal.DealModeFiveBy15:
		songs = dedupe(flatten(deck.Columns))
	default:
		songs = append([]internal.Song(nil), deck.Pool...)
	}
	rand.Shuffle(len(songs), func(i, j int) {
		songs[i], songs[j] = songs[j], songs[i]
	})
	return songs
}

// RevealPools returns the id-only staged-reveal payloads: one stage per
// column in 5-by-15 mode, otherwise the pool chunked into five stages.
// Identifiers only; titles stay hidden until played.
func RevealPools(deck *internal.Deck) [][]string {
	if deck.Mode == internal.DealModeFiveBy15 {
		stages := make([][]string, 0, len(deck.Columns))
		for _, column := range deck.Columns {
			stages = append(stages, songIDs(column))
		}
		return stages
	}

	ids := songIDs(deck.Pool)
	stageCount := internal.ColumnPoolCount
	if len(ids) < stageCount {
		stageCount = 1
	}
	size := (len(ids) + stageCount - 1) / stageCount
	stages := make([][]string, 0, stageCount)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		stages = append(stages, ids[start:end])
	}
	return stages
}

// sample draws n distinct songs from src, skipping ids in exclude. Returns
// fewer than n when src cannot supply them.
func sample(src []internal.Song, n int, exclude map[string]bool) []internal.Song {
	eligible := make([]internal.Song, 0, len(src))
	for _, s := range src {
		if !exclude[s.ID] {
			eligible = append(eligible, s)
		}
	}
	if n > len(eligible) {
		n = len(eligible)
	}
	// Partial Fisher-Yates: only the first n positions need shuffling.
	for i := 0; i < n; i++ {
		j := i + rand.Intn(len(eligible)-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	return eligible[:n]
}

func dedupe(songs []internal.Song) []internal.Song {
	seen := make(map[string]bool, len(songs))
	out := make([]internal.Song, 0, len(songs))
	for _, s := range songs {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func flatten(pools [][]internal.Song) []internal.Song {
	var out []internal.Song
	for _, pool := range pools {
		out = append(out, pool...)
	}
	return out
}

// applyHostOrder reorders songs to follow the host-curated sequence, keeping
// unlisted songs at the tail in their original order. Returns songs unchanged
// when no order was supplied.
func applyHostOrder(songs []internal.Song, hostOrder []internal.Song) []internal.Song {
	if len(hostOrder) == 0 {
		return songs
	}
	byID := make(map[string]internal.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}
	out := make([]internal.Song, 0, len(songs))
	taken := make(map[string]bool, len(songs))
	for _, h := range hostOrder {
		if s, ok := byID[h.ID]; ok && !taken[s.ID] {
			out = append(out, s)
			taken[s.ID] = true
		}
	}
	for _, s := range songs {
		if !taken[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func allAtLeast(pools [][]internal.Song, n int) bool {
	for _, pool := range pools {
		if len(pool) < n {
			return false
		}
	}
	return true
}

func countDistinct(pools [][]internal.Song) int {
	seen := make(map[string]bool)
	for _, pool := range pools {
		for _, s := range pool {
			seen[s.ID] = true
		}
	}
	return len(seen)
}

func songIDs(songs []internal.Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}

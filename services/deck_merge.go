// services/deck_merge.go
package services

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Hunternif/cards-against-animals-sub000/models"
)

// CardHandle addresses a card stored in a CardArena.
type CardHandle int

// CardArena owns every card touched by a merge. Renumbered cards are appended
// as new entries, so the originals stay intact for diffing or rollback.
type CardArena struct {
	cards []models.DeckCard
}

func NewCardArena() *CardArena {
	return &CardArena{}
}

func (a *CardArena) Add(card models.DeckCard) CardHandle {
	a.cards = append(a.cards, card)
	return CardHandle(len(a.cards) - 1)
}

func (a *CardArena) AddAll(cards []models.DeckCard) []CardHandle {
	handles := make([]CardHandle, len(cards))
	for i, c := range cards {
		handles[i] = a.Add(c)
	}
	return handles
}

// Get returns a copy of the card behind h.
func (a *CardArena) Get(h CardHandle) models.DeckCard {
	return a.cards[h]
}

// RenameTable maps an original card handle to the handle of its copy.
type RenameTable map[CardHandle]CardHandle

// NormalizeCardIDs copies every source card, giving a fresh 4-digit ID to each
// one whose ID is already taken by dest or by an earlier source card.
func NormalizeCardIDs(arena *CardArena, dest, source []CardHandle) (RenameTable, error) {
	used := make(map[string]bool, len(dest)+len(source))
	topID := len(dest)
	for _, h := range dest {
		id := arena.Get(h).ID
		used[id] = true
		if models.CardIDPattern.MatchString(id) {
			if n, err := strconv.Atoi(id); err == nil && n > topID {
				topID = n
			}
		}
	}

	sorted := append([]CardHandle(nil), source...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return arena.Get(sorted[i]).ID < arena.Get(sorted[j]).ID
	})

	renames := make(RenameTable, len(source))
	collisions := 0
	for _, h := range sorted {
		card := arena.Get(h)
		if used[card.ID] {
			collisions++
			newID := fmt.Sprintf("%04d", topID+collisions)
			if used[newID] {
				return nil, fmt.Errorf("%w: %s %s reassigned to %s", ErrIDCollision, card.Kind, card.ID, newID)
			}
			card.ID = newID
		}
		used[card.ID] = true
		renames[h] = arena.Add(card)
	}
	return renames, nil
}

// UpdateCardsForMerge renumbers an incoming prompt and response set so it can
// be stored next to destAll, the destination deck's combined card list. The
// returned table maps every incoming handle to its final copy.
func UpdateCardsForMerge(arena *CardArena, destAll, prompts, responses []CardHandle) (RenameTable, error) {
	// Responses are renumbered against the prompt ID space first.
	inner, err := NormalizeCardIDs(arena, prompts, responses)
	if err != nil {
		return nil, err
	}

	combined := make([]CardHandle, 0, len(prompts)+len(responses))
	combined = append(combined, prompts...)
	for _, h := range responses {
		combined = append(combined, inner[h])
	}

	outer, err := NormalizeCardIDs(arena, destAll, combined)
	if err != nil {
		return nil, err
	}

	final := make(RenameTable, len(combined))
	for _, h := range prompts {
		final[h] = outer[h]
	}
	for _, h := range responses {
		final[h] = outer[inner[h]]
	}
	return final, nil
}

// MergeTags adds incoming tags to dest. A tag with an existing name replaces
// the old one in place; new names are appended in incoming order.
func MergeTags(dest, incoming []models.DeckTag) []models.DeckTag {
	merged := make([]models.DeckTag, 0, len(dest)+len(incoming))
	pos := map[string]int{}
	for _, list := range [][]models.DeckTag{dest, incoming} {
		for _, tag := range list {
			if i, ok := pos[tag.Name]; ok {
				merged[i] = tag
				continue
			}
			pos[tag.Name] = len(merged)
			merged = append(merged, tag)
		}
	}
	return merged
}

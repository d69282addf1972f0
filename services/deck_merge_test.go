package services_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/services"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

func TestUpdateCardsForMerge_TwoSmallDecks(t *testing.T) {
	arena := services.NewCardArena()
	dest := arena.AddAll([]models.DeckCard{
		promptCard("0001", models.CardStats{}),
		responseCard("0002", models.CardStats{}),
	})
	srcPrompt := arena.Add(promptCard("0001", models.CardStats{}))
	srcResponse := arena.Add(responseCard("0002", models.CardStats{}))

	renames, err := services.UpdateCardsForMerge(arena, dest, []services.CardHandle{srcPrompt}, []services.CardHandle{srcResponse})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := arena.Get(renames[srcPrompt]).ID; got != "0003" {
		t.Errorf("expected merged prompt 0003, got %s", got)
	}
	if got := arena.Get(renames[srcResponse]).ID; got != "0004" {
		t.Errorf("expected merged response 0004, got %s", got)
	}
	// originals untouched
	if arena.Get(srcPrompt).ID != "0001" || arena.Get(srcResponse).ID != "0002" {
		t.Error("source cards were mutated")
	}
}

func TestNormalizeCardIDs_KeepsFreeIDs(t *testing.T) {
	arena := services.NewCardArena()
	dest := arena.AddAll([]models.DeckCard{responseCard("0001", models.CardStats{})})
	src := arena.AddAll([]models.DeckCard{
		responseCard("0007", models.CardStats{}),
		responseCard("0001", models.CardStats{}),
	})

	renames, err := services.NormalizeCardIDs(arena, dest, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := arena.Get(renames[src[0]]).ID; got != "0007" {
		t.Errorf("free ID should be kept, got %s", got)
	}
	if got := arena.Get(renames[src[1]]).ID; got != "0002" {
		t.Errorf("expected collision to get 0002, got %s", got)
	}
}

func TestNormalizeCardIDs_IgnoresManualIDsForTop(t *testing.T) {
	arena := services.NewCardArena()
	dest := arena.AddAll([]models.DeckCard{
		responseCard("custom-99", models.CardStats{}),
		responseCard("0005", models.CardStats{}),
	})
	src := arena.AddAll([]models.DeckCard{responseCard("0005", models.CardStats{})})

	renames, err := services.NormalizeCardIDs(arena, dest, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := arena.Get(renames[src[0]]).ID; got != "0006" {
		t.Errorf("expected 0006, got %s", got)
	}
}

func TestNormalizeCardIDs_CollisionAfterAllocation(t *testing.T) {
	arena := services.NewCardArena()
	dest := arena.AddAll([]models.DeckCard{responseCard("0001", models.CardStats{})})
	src := arena.AddAll([]models.DeckCard{
		responseCard("0001", models.CardStats{}),
		responseCard("0003", models.CardStats{}),
		responseCard("0003", models.CardStats{}),
	})

	_, err := services.NormalizeCardIDs(arena, dest, src)
	if !errors.Is(err, services.ErrIDCollision) {
		t.Fatalf("expected ErrIDCollision, got %v", err)
	}
}

func TestUpdateCardsForMerge_NoDuplicateIDs(t *testing.T) {
	rng := utils.FromStrSeed("merge-property")
	for round := 0; round < 50; round++ {
		arena := services.NewCardArena()
		randomCards := func(n int, kind models.CardKind) []models.DeckCard {
			cards := make([]models.DeckCard, n)
			for i := range cards {
				cards[i] = models.DeckCard{DeckID: "d", Kind: kind, ID: fmt.Sprintf("%04d", rng.RandomIntClamped(1, 12))}
			}
			return cards
		}

		// destination IDs must already be unique
		destCards := []models.DeckCard{}
		seen := map[string]bool{}
		for _, c := range randomCards(rng.RandomIntClamped(0, 8), models.CardKindPrompt) {
			if !seen[c.ID] {
				seen[c.ID] = true
				destCards = append(destCards, c)
			}
		}
		dest := arena.AddAll(destCards)
		prompts := arena.AddAll(randomCards(rng.RandomIntClamped(0, 6), models.CardKindPrompt))
		responses := arena.AddAll(randomCards(rng.RandomIntClamped(0, 6), models.CardKindResponse))

		renames, err := services.UpdateCardsForMerge(arena, dest, prompts, responses)
		if err != nil {
			// duplicated IDs inside the incoming set may legitimately exhaust allocation
			if errors.Is(err, services.ErrIDCollision) {
				continue
			}
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}

		ids := map[string]bool{}
		for _, h := range dest {
			ids[arena.Get(h).ID] = true
		}
		for _, h := range append(append([]services.CardHandle{}, prompts...), responses...) {
			id := arena.Get(renames[h]).ID
			if ids[id] {
				t.Fatalf("round %d: duplicate ID %s in merge result", round, id)
			}
			ids[id] = true
		}
	}
}

func TestMergeTags_IncomingOverwrites(t *testing.T) {
	dest := []models.DeckTag{
		{Name: "animals", Description: "old"},
		{Name: "food"},
	}
	incoming := []models.DeckTag{
		{Name: "space"},
		{Name: "animals", Description: "new"},
	}

	merged := services.MergeTags(dest, incoming)
	want := []models.DeckTag{
		{Name: "animals", Description: "new"},
		{Name: "food"},
		{Name: "space"},
	}
	if len(merged) != len(want) {
		t.Fatalf("expected %d tags, got %v", len(want), merged)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("tag %d: expected %+v, got %+v", i, want[i], merged[i])
		}
	}
}

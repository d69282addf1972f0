// services/deck_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
)

// SnapshotStore archives a JSON copy of a deck before it is modified.
type SnapshotStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type DeckService struct {
	Store     repository.Store
	Snapshots SnapshotStore
	Now       func() time.Time
}

func NewDeckService(store repository.Store, snapshots SnapshotStore) *DeckService {
	return &DeckService{Store: store, Snapshots: snapshots, Now: time.Now}
}

// DeckImport is a batch of cards to add to a deck. Cards without an ID are
// numbered in list order.
type DeckImport struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Tags        []models.DeckTag  `json:"tags"`
	Prompts     []models.DeckCard `json:"prompts"`
	Responses   []models.DeckCard `json:"responses"`
}

// MergeResult maps each incoming card ID to the ID it was stored under.
type MergeResult struct {
	DeckID      string            `json:"deck_id"`
	Prompts     map[string]string `json:"prompts"`
	Responses   map[string]string `json:"responses"`
	SnapshotURL string            `json:"snapshot_url,omitempty"`
}

// uniqueDeckID slugs the title, adding -2, -3, ... until the ID is free.
func uniqueDeckID(ctx context.Context, tx repository.Tx, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = uuid.NewString()[:8]
	}
	id := base
	for n := 2; ; n++ {
		_, err := tx.GetDeck(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func validateTags(tags []models.DeckTag) error {
	for _, t := range tags {
		if err := ValidateTagName(t.Name); err != nil {
			return err
		}
	}
	return nil
}

// CreateDeck stores an empty deck under a slug of its title.
func (s *DeckService) CreateDeck(ctx context.Context, title, description string) (*models.Deck, error) {
	var deck *models.Deck
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		deck, err = s.createDeckTx(ctx, tx, title, description, nil)
		return err
	})
	return deck, err
}

func (s *DeckService) createDeckTx(ctx context.Context, tx repository.Tx, title, description string, tags []models.DeckTag) (*models.Deck, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: empty deck title", ErrInvalidInput)
	}
	if err := validateTags(tags); err != nil {
		return nil, err
	}
	id, err := uniqueDeckID(ctx, tx, title)
	if err != nil {
		return nil, err
	}
	deck := &models.Deck{ID: id, Title: title, Description: description, Tags: MergeTags(nil, tags)}
	if err := tx.SaveDeck(ctx, deck); err != nil {
		return nil, err
	}
	log.Printf("[DECK] ✅ created deck %s", id)
	return deck, nil
}

// ImportDeck creates a deck and fills it in one go.
func (s *DeckService) ImportDeck(ctx context.Context, in DeckImport) (*MergeResult, error) {
	var result *MergeResult
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		deck, err := s.createDeckTx(ctx, tx, in.Title, in.Description, in.Tags)
		if err != nil {
			return err
		}
		result, err = s.copyCardsTx(ctx, tx, deck.ID, in.Prompts, in.Responses, nil)
		return err
	})
	return result, err
}

func (s *DeckService) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	var deck *models.Deck
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		deck, err = tx.GetDeck(ctx, deckID)
		return err
	})
	return deck, err
}

// ListDecks returns deck headers without cards.
func (s *DeckService) ListDecks(ctx context.Context) ([]models.Deck, error) {
	var decks []models.Deck
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		decks, err = tx.ListDecks(ctx)
		return err
	})
	return decks, err
}

// AddTag adds or redescribes a deck tag.
func (s *DeckService) AddTag(ctx context.Context, deckID string, tag models.DeckTag) (*models.Deck, error) {
	if err := ValidateTagName(tag.Name); err != nil {
		return nil, err
	}
	var deck *models.Deck
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		if deck, err = tx.GetDeck(ctx, deckID); err != nil {
			return err
		}
		deck.Tags = MergeTags(deck.Tags, []models.DeckTag{tag})
		return tx.SaveDeck(ctx, deck)
	})
	return deck, err
}

// MergeDecks copies every card and tag of src into dest. src is unchanged.
func (s *DeckService) MergeDecks(ctx context.Context, srcID, destID string) (*MergeResult, error) {
	if srcID == destID {
		return nil, fmt.Errorf("%w: cannot merge a deck into itself", ErrInvalidInput)
	}
	var result *MergeResult
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		src, err := tx.GetDeck(ctx, srcID)
		if err != nil {
			return err
		}
		result, err = s.copyCardsTx(ctx, tx, destID, src.Prompts(), src.Responses(), src.Tags)
		return err
	})
	if err == nil {
		log.Printf("[DECK] merged %s into %s", srcID, destID)
	}
	return result, err
}

// CopyCardsToDeck adds cards to an existing deck, renumbering on collision.
func (s *DeckService) CopyCardsToDeck(ctx context.Context, destID string, prompts, responses []models.DeckCard, tags []models.DeckTag) (*MergeResult, error) {
	var result *MergeResult
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		result, err = s.copyCardsTx(ctx, tx, destID, prompts, responses, tags)
		return err
	})
	return result, err
}

// withProvisionalIDs fills in missing IDs with the first free number from the
// card's 1-based list position. Repeated IDs within one list are rejected.
func withProvisionalIDs(cards []models.DeckCard) ([]models.DeckCard, error) {
	used := make(map[string]bool, len(cards))
	for _, c := range cards {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		if used[id] {
			return nil, fmt.Errorf("%w: duplicate card ID %q", ErrInvalidInput, id)
		}
		used[id] = true
	}

	out := make([]models.DeckCard, len(cards))
	for i, c := range cards {
		if strings.TrimSpace(c.ID) == "" {
			n := i + 1
			for used[fmt.Sprintf("%04d", n)] {
				n++
			}
			c.ID = fmt.Sprintf("%04d", n)
			used[c.ID] = true
		}
		out[i] = c
	}
	return out, nil
}

func (s *DeckService) copyCardsTx(ctx context.Context, tx repository.Tx, destID string, prompts, responses []models.DeckCard, tags []models.DeckTag) (*MergeResult, error) {
	if err := validateTags(tags); err != nil {
		return nil, err
	}
	for _, list := range [][]models.DeckCard{prompts, responses} {
		for _, c := range list {
			if strings.TrimSpace(c.Content) == "" {
				return nil, fmt.Errorf("%w: card %q has no content", ErrInvalidInput, c.ID)
			}
			for _, t := range c.Tags {
				if err := ValidateTagName(t); err != nil {
					return nil, err
				}
			}
		}
	}

	var err error
	if prompts, err = withProvisionalIDs(prompts); err != nil {
		return nil, err
	}
	if responses, err = withProvisionalIDs(responses); err != nil {
		return nil, err
	}

	dest, err := tx.GetDeck(ctx, destID)
	if err != nil {
		return nil, err
	}
	result := &MergeResult{DeckID: dest.ID, Prompts: map[string]string{}, Responses: map[string]string{}}
	if s.Snapshots != nil && len(dest.Cards) > 0 {
		key := fmt.Sprintf("deck-snapshots/%s/%d.json", dest.ID, s.Now().Unix())
		if result.SnapshotURL, err = s.Snapshots.PutJSON(ctx, key, dest); err != nil {
			return nil, fmt.Errorf("snapshot deck %s: %w", dest.ID, err)
		}
	}

	arena := NewCardArena()
	destHandles := arena.AddAll(dest.Cards)
	promptHandles := arena.AddAll(prompts)
	responseHandles := arena.AddAll(responses)
	renames, err := UpdateCardsForMerge(arena, destHandles, promptHandles, responseHandles)
	if err != nil {
		return nil, err
	}

	known := map[string]bool{}
	for _, t := range dest.Tags {
		known[t.Name] = true
	}
	for _, t := range tags {
		known[t.Name] = true
	}
	incomingTags := append([]models.DeckTag(nil), tags...)

	out := make([]models.DeckCard, 0, len(prompts)+len(responses))
	store := func(handles []CardHandle, originals []models.DeckCard, kind models.CardKind, ids map[string]string) {
		for i, h := range handles {
			c := arena.Get(renames[h])
			c.DeckID = dest.ID
			c.Kind = kind
			if kind == models.CardKindPrompt && c.Pick < 1 {
				c.Pick = 1
			}
			for _, t := range c.Tags {
				if !known[t] {
					known[t] = true
					incomingTags = append(incomingTags, models.DeckTag{Name: t})
				}
			}
			ids[originals[i].ID] = c.ID
			out = append(out, c)
		}
	}
	store(promptHandles, prompts, models.CardKindPrompt, result.Prompts)
	store(responseHandles, responses, models.CardKindResponse, result.Responses)

	if err := tx.SaveCards(ctx, out); err != nil {
		return nil, err
	}
	dest.Tags = MergeTags(dest.Tags, incomingTags)
	if err := tx.SaveDeck(ctx, dest); err != nil {
		return nil, err
	}
	log.Printf("[DECK] added %d prompts and %d responses to %s", len(prompts), len(responses), dest.ID)
	return result, nil
}

// services/card_dealer.go
package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
)

// CardDealer deals response cards from a lobby's pool into player hands.
type CardDealer struct {
	Stats *StatsLogger
	Now   func() time.Time
}

func NewCardDealer(stats *StatsLogger) *CardDealer {
	return &CardDealer{Stats: stats, Now: time.Now}
}

type tagGroup struct {
	name  string
	count int
}

func tagSpecificity(name string) int {
	switch name {
	case repository.NoTags:
		return 0
	case repository.AnyTag:
		return 2
	default:
		return 1
	}
}

// groupTagRequests counts requested tag names and orders the groups from the
// most specific (no tags) through named tags to the any-tag fallback.
func groupTagRequests(tagNames []string) []tagGroup {
	counts := map[string]int{}
	for _, name := range tagNames {
		if name != "" {
			counts[name]++
		}
	}
	groups := make([]tagGroup, 0, len(counts)+1)
	for name, n := range counts {
		groups = append(groups, tagGroup{name: name, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		si, sj := tagSpecificity(groups[i].name), tagSpecificity(groups[j].name)
		if si != sj {
			return si < sj
		}
		return groups[i].name < groups[j].name
	})
	return groups
}

// FetchCardsForTags picks up to cardLimit distinct cards from the top of the
// pool, serving each requested tag first and padding with any remaining cards.
func (d *CardDealer) FetchCardsForTags(ctx context.Context, cards repository.CardTagRepository, lobbyID string, tagNames []string, cardLimit int) ([]models.ResponseCardInHand, error) {
	if cardLimit <= 0 {
		return nil, nil
	}
	groups := append(groupTagRequests(tagNames), tagGroup{name: repository.AnyTag, count: cardLimit})

	now := d.Now()
	seen := map[string]bool{}
	var result []models.ResponseCardInHand
	for _, g := range groups {
		if len(result) >= cardLimit {
			break
		}
		// Earlier groups may have taken some of this group's cards already.
		fetched, err := cards.QueryResponses(ctx, lobbyID, g.name, g.count+len(result))
		if err != nil {
			return nil, err
		}
		accepted := 0
		for _, c := range fetched {
			if accepted >= g.count || len(result) >= cardLimit {
				break
			}
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			result = append(result, models.ResponseCardInHand{CardInGame: c, TimeDealt: now})
			accepted++
		}
	}
	return result, nil
}

// DealCards tops up the player's hand, creating their game state on first use.
func (d *CardDealer) DealCards(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, uid string) ([]models.ResponseCardInHand, error) {
	state, err := tx.GetPlayerState(ctx, lobby.ID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		state = models.NewPlayerGameState(lobby.ID, uid)
	} else if err != nil {
		return nil, err
	}
	return d.DealToState(ctx, tx, lobby, state)
}

// DealToState tops up state's hand to cards_per_person using its pending tag
// request, removes the dealt cards from the pool and saves state.
func (d *CardDealer) DealToState(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, state *models.PlayerGameState) ([]models.ResponseCardInHand, error) {
	settings := lobby.GameSettings()
	hand := state.HandCards()
	need := settings.CardsPerPerson - len(hand)
	if need <= 0 {
		return nil, tx.SavePlayerState(ctx, state)
	}

	dealt, err := d.FetchCardsForTags(ctx, tx, lobby.ID, state.TagRequest, need)
	if err != nil {
		return nil, err
	}
	state.TagRequest = nil

	if len(dealt) > 0 {
		ids := make([]string, len(dealt))
		counts := lobby.TagCounts()
		for i, c := range dealt {
			hand[c.ID] = c
			ids[i] = c.ID
			for _, tag := range c.Tags {
				if counts[tag] > 0 {
					counts[tag]--
				}
			}
		}
		if err := tx.RemoveCards(ctx, lobby.ID, models.CardKindResponse, ids); err != nil {
			return nil, err
		}
		if err := tx.UpdateLobby(ctx, lobby); err != nil {
			return nil, err
		}
		if err := d.Stats.LogAll(ctx, tx, settings, handCards(dealt), models.CardStats{Views: 1}); err != nil {
			return nil, err
		}
	}
	if len(dealt) < need {
		log.Printf("[DEALER] ⚠️ lobby %s ran short: dealt %d of %d cards to %s", lobby.ID, len(dealt), need, state.UID)
	}

	if err := tx.SavePlayerState(ctx, state); err != nil {
		return nil, err
	}
	return dealt, nil
}

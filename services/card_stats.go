// services/card_stats.go
package services

import (
	"context"
	"log"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
)

// StatsLogger writes gameplay interactions back to the source deck cards.
type StatsLogger struct{}

func NewStatsLogger() *StatsLogger {
	return &StatsLogger{}
}

// Log adds delta to the deck card behind card. Lobbies with frozen stats log nothing.
func (l *StatsLogger) Log(ctx context.Context, decks repository.DeckStore, settings models.LobbySettings, card models.CardInGame, delta models.CardStats) error {
	if settings.FreezeStats || delta.IsZero() || card.DeckID == "" {
		return nil
	}
	if err := decks.IncrementCardStats(ctx, card.DeckID, card.Kind, card.CardIDInDeck, delta); err != nil {
		log.Printf("[STATS] failed to log %+v for %s/%s: %v", delta, card.DeckID, card.CardIDInDeck, err)
		return err
	}
	return nil
}

// LogAll applies the same delta to every card.
func (l *StatsLogger) LogAll(ctx context.Context, decks repository.DeckStore, settings models.LobbySettings, cards []models.CardInGame, delta models.CardStats) error {
	for _, c := range cards {
		if err := l.Log(ctx, decks, settings, c, delta); err != nil {
			return err
		}
	}
	return nil
}

func handCards(cards []models.ResponseCardInHand) []models.CardInGame {
	out := make([]models.CardInGame, len(cards))
	for i, c := range cards {
		out[i] = c.CardInGame
	}
	return out
}

// services/bot_driver.go
package services

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

// BotUIDPrefix marks player UIDs owned by the server.
const BotUIDPrefix = "bot_"

// BotDriver plays for bot players: random responses and random winners.
type BotDriver struct {
	NewRNG func() *utils.RNG
}

func NewBotDriver() *BotDriver {
	return &BotDriver{NewRNG: utils.FromTimestamp}
}

// PlayBots submits a response for every bot that has not answered the
// current prompt. A bot whose hand is too small becomes a spectator.
func (b *BotDriver) PlayBots(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn) error {
	if turn.Phase != models.TurnPhaseAnswering {
		return nil
	}
	prompt, ok := turn.PromptCard()
	if !ok {
		return nil
	}
	pick := models.PromptPick(prompt)

	players, err := tx.ListPlayers(ctx, lobby.ID)
	if err != nil {
		return err
	}
	for i := range players {
		bot := &players[i]
		if !bot.IsBot || !bot.IsActivePlayer() || bot.UID == turn.JudgeUID {
			continue
		}
		if _, err := tx.GetResponse(ctx, lobby.ID, turn.ID, bot.UID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		state, err := getOrCreateState(ctx, tx, lobby.ID, bot.UID)
		if err != nil {
			return err
		}
		hand := make([]models.ResponseCardInHand, 0, len(state.HandCards()))
		for _, c := range state.HandCards() {
			hand = append(hand, c)
		}
		if len(hand) < pick {
			log.Printf("[BOT] %s has %d cards for a pick-%d prompt, moving to spectators", bot.UID, len(hand), pick)
			bot.Role = models.PlayerRoleSpectator
			if err := tx.SavePlayer(ctx, bot); err != nil {
				return err
			}
			continue
		}
		sort.Slice(hand, func(i, j int) bool { return hand[i].ID < hand[j].ID })
		utils.ShuffleArray(b.NewRNG(), hand)

		ids := make([]string, pick)
		for j := range ids {
			ids[j] = hand[j].ID
		}
		if err := submitResponse(ctx, tx, turn, bot, state, ids); err != nil {
			return err
		}
	}
	return nil
}

// ChooseWinner picks one response uniformly at random.
func (b *BotDriver) ChooseWinner(responses []models.PlayerResponse, rng *utils.RNG) *models.PlayerResponse {
	if len(responses) == 0 {
		return nil
	}
	return &responses[rng.RandomIntClamped(0, len(responses)-1)]
}

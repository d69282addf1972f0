// services/discard.go
package services

import (
	"github.com/Hunternif/cards-against-animals-sub000/models"
)

// PayDiscardCost charges one discard action under the given policy. It returns
// false, leaving state untouched, when the discard is not allowed. Score never
// drops below zero; a player without points discards for free.
func PayDiscardCost(state *models.PlayerGameState, cost models.DiscardCost, currentTurnID string) bool {
	switch cost {
	case models.DiscardCostFree:
	case models.DiscardCostNoDiscard:
		return false
	case models.DiscardCostOneStar:
		payStar(state)
	case models.DiscardCostOneFreeThenStar:
		if state.LastDiscardTurnID == currentTurnID {
			payStar(state)
		}
	case models.DiscardCostToken:
		if state.DiscardTokens <= 0 {
			return false
		}
		state.DiscardTokens--
	default:
		return false
	}
	state.LastDiscardTurnID = currentTurnID
	state.DiscardsUsed++
	return true
}

func payStar(state *models.PlayerGameState) {
	if state.Score > 0 {
		state.Score--
	}
}

// AwardDiscardTokens grants tokens for crossed like milestones and for every
// TurnsPerToken-th turn, never exceeding MaxDiscardTokens.
func AwardDiscardTokens(state *models.PlayerGameState, likesBefore, turnOrdinal int, s models.LobbySettings) int {
	award := 0
	if s.LikesPerToken > 0 {
		award += state.Likes/s.LikesPerToken - likesBefore/s.LikesPerToken
	}
	if s.TurnsPerToken > 0 && turnOrdinal > 0 && turnOrdinal%s.TurnsPerToken == 0 {
		award++
	}
	if award <= 0 || state.DiscardTokens >= s.MaxDiscardTokens {
		return 0
	}
	if state.DiscardTokens+award > s.MaxDiscardTokens {
		award = s.MaxDiscardTokens - state.DiscardTokens
	}
	state.DiscardTokens += award
	return award
}

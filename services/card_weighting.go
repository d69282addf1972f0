// services/card_weighting.go
package services

import (
	"math"
	"strconv"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

// Indices at or above this value belong to unviewed cards when new cards go first.
const newCardsIndexSplit = 2_000_000_000

type CardTier string

const (
	CardTierTop  CardTier = "top"
	CardTierMid  CardTier = "mid"
	CardTierShit CardTier = "shit"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// GetCardFactor is the probability multiplier of a card given its lifetime stats.
// Penalties are clamped to [SortMinFactor, 1]; boosts can push the result above 1.
func GetCardFactor(card models.DeckCard, s models.LobbySettings) float64 {
	if card.Views <= 0 {
		return 1
	}
	views := float64(card.Views)
	factor := 1.0

	if s.SortFreqViews {
		factor *= clamp((s.SortViewsGrace+float64(card.Plays))/views, s.SortMinFactor, 1)
	}
	if s.SortFreqWins {
		factor *= 1 + s.SortWinsBoost*float64(card.Wins)/views
	}
	if s.SortFreqDiscards {
		factor *= clamp(1-float64(card.Discards)/views, s.SortMinFactor, 1)
	}

	switch card.Kind {
	case models.CardKindPrompt:
		if s.SortFreqVotes {
			// Upvotes only offset downvotes.
			penalty := float64(card.Downvotes) - s.SortUpvoteOffset*float64(card.Upvotes)
			if penalty > 0 {
				factor *= clamp(1-penalty/views, s.SortMinFactor, 1)
			}
		}
	case models.CardKindResponse:
		if s.SortFreqLikes {
			factor *= 1 + s.SortLikesBoost*float64(card.Likes)/views
		}
		if s.SortFreqRating {
			rating := float64(card.Rating)
			if rating < 0 {
				factor *= clamp(1+rating/views, s.SortMinFactor, 1)
			} else {
				factor *= 1 + s.SortRatingBoost*rating/views
			}
		}
	}
	return factor
}

// GetCardIndex computes the shuffle key of a card. The dealer takes cards with
// the highest index first.
func GetCardIndex(card models.DeckCard, rng utils.IntSource, s models.LobbySettings) int64 {
	if s.SortByID {
		id, err := strconv.Atoi(card.ID)
		if err != nil {
			return 0
		}
		return -int64(id)
	}

	weighted := float64(rng.RandomInt()) * GetCardFactor(card, s)
	if weighted > math.MaxUint32 {
		weighted = math.MaxUint32
	}
	idx := uint32(weighted)

	if s.NewCardsFirst {
		idx %= newCardsIndexSplit
		if card.Views <= 0 {
			idx += newCardsIndexSplit
		}
	}
	return int64(idx)
}

// GetCardTier buckets a factor for the deck admin views.
func GetCardTier(factor float64) CardTier {
	switch {
	case factor >= 1:
		return CardTierTop
	case factor >= 0.5:
		return CardTierMid
	default:
		return CardTierShit
	}
}

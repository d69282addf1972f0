// services/action_cards.go
package services

import (
	"strings"

	"github.com/Hunternif/cards-against-animals-sub000/models"
)

// JudgeNamePlaceholder is replaced by the judge's name on insert_judge_name cards.
const JudgeNamePlaceholder = "{judge}"

// ResolveActionCards sets the displayed text of action cards. responses must
// be in reveal order; previousWinner is the winning response of the last turn,
// or nil. Cards that cannot be resolved keep their own content.
func ResolveActionCards(responses []models.PlayerResponse, previousWinner *models.PlayerResponse, judgeName string) {
	n := len(responses)
	for i := range responses {
		cards := responses[i].Cards
		for j := range cards {
			card := &cards[j]
			switch card.Action {
			case models.ActionRepeatLast:
				if previousWinner != nil && len(previousWinner.Cards) > 0 {
					card.ResolvedContent = previousWinner.Cards[len(previousWinner.Cards)-1].DisplayContent()
				}
			case models.ActionRepeatPlayerFirst, models.ActionRepeatPlayerLast:
				if n < 2 {
					continue
				}
				prev := responses[(i-1+n)%n].Cards
				if len(prev) == 0 {
					continue
				}
				if card.Action == models.ActionRepeatPlayerFirst {
					card.ResolvedContent = prev[0].Content
				} else {
					card.ResolvedContent = prev[len(prev)-1].Content
				}
			case models.ActionInsertJudgeName:
				if judgeName == "" {
					continue
				}
				if strings.Contains(card.Content, JudgeNamePlaceholder) {
					card.ResolvedContent = strings.ReplaceAll(card.Content, JudgeNamePlaceholder, judgeName)
				} else {
					card.ResolvedContent = judgeName
				}
			}
		}
	}
}

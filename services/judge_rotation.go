// services/judge_rotation.go
package services

import (
	"sort"

	"github.com/Hunternif/cards-against-animals-sub000/models"
)

// JudgeSequence lists online players (not spectators) in their fixed join-time
// random order.
func JudgeSequence(players []models.PlayerInLobby) []models.PlayerInLobby {
	var seq []models.PlayerInLobby
	for _, p := range players {
		if p.IsActivePlayer() {
			seq = append(seq, p)
		}
	}
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].RandomIndex != seq[j].RandomIndex {
			return seq[i].RandomIndex < seq[j].RandomIndex
		}
		return seq[i].UID < seq[j].UID
	})
	return seq
}

// FindNextPlayer returns the player after lastJudgeUID, wrapping around. If the
// last judge is gone the first player is picked; nil means nobody can judge.
func FindNextPlayer(sequence []models.PlayerInLobby, lastJudgeUID string) *models.PlayerInLobby {
	if len(sequence) == 0 {
		return nil
	}
	for i, p := range sequence {
		if p.UID == lastJudgeUID {
			next := sequence[(i+1)%len(sequence)]
			return &next
		}
	}
	first := sequence[0]
	return &first
}

// models/turn.go
package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type TurnPhase string

const (
	TurnPhaseNew       TurnPhase = "new"
	TurnPhaseAnswering TurnPhase = "answering"
	TurnPhaseReading   TurnPhase = "reading"
	TurnPhaseComplete  TurnPhase = "complete"
)

var phaseOrder = map[TurnPhase]int{
	TurnPhaseNew:       0,
	TurnPhaseAnswering: 1,
	TurnPhaseReading:   2,
	TurnPhaseComplete:  3,
}

// Before reports whether p comes strictly earlier than other in the turn lifecycle.
func (p TurnPhase) Before(other TurnPhase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

type PromptVote string

const (
	PromptVoteNone PromptVote = ""
	PromptVoteUp   PromptVote = "up"
	PromptVoteDown PromptVote = "down"
)

type GameTurn struct {
	LobbyID  string    `json:"lobby_id" gorm:"primaryKey"`
	ID       string    `json:"id" gorm:"primaryKey"`
	Ordinal  int       `json:"ordinal" gorm:"index"`
	JudgeUID string    `json:"judge_uid"`
	Phase    TurnPhase `json:"phase"`

	// Prompt is empty (ID == "") until the judge plays one.
	Prompt      datatypes.JSONType[CardInGame]            `json:"prompt" gorm:"type:jsonb"`
	PromptVotes datatypes.JSONType[map[string]PromptVote] `json:"prompt_votes" gorm:"type:jsonb"`

	WinnerUID      string    `json:"winner_uid,omitempty"`
	PhaseStartedAt time.Time `json:"phase_started_at"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TurnIDFor formats the document ID for a turn ordinal.
func TurnIDFor(ordinal int) string {
	return fmt.Sprintf("%02d", ordinal)
}

func (t *GameTurn) PromptCard() (CardInGame, bool) {
	p := t.Prompt.Data()
	return p, p.ID != ""
}

// Votes returns the live per-player prompt votes.
func (t *GameTurn) Votes() map[string]PromptVote {
	v := t.PromptVotes.Data()
	if v == nil {
		v = map[string]PromptVote{}
		t.PromptVotes = datatypes.NewJSONType(v)
	}
	return v
}

type PlayerResponse struct {
	LobbyID    string                                  `json:"lobby_id" gorm:"primaryKey"`
	TurnID     string                                  `json:"turn_id" gorm:"primaryKey"`
	PlayerUID  string                                  `json:"player_uid" gorm:"primaryKey"`
	PlayerName string                                  `json:"player_name"`
	Cards      datatypes.JSONSlice[ResponseCardInHand] `json:"cards" gorm:"type:jsonb"`
	LikedBy    datatypes.JSONSlice[string]             `json:"liked_by" gorm:"type:jsonb"`

	// RevealIndex is assigned when the turn enters reading.
	RevealIndex int       `json:"reveal_index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (r *PlayerResponse) LikedByUser(uid string) bool {
	for _, u := range r.LikedBy {
		if u == uid {
			return true
		}
	}
	return false
}

// SetPrompt records the prompt the judge played.
func (t *GameTurn) SetPrompt(card CardInGame) {
	t.Prompt = datatypes.NewJSONType(card)
}

// PromptPick is the number of response cards a prompt asks for.
func PromptPick(prompt CardInGame) int {
	if prompt.Pick < 1 {
		return 1
	}
	return prompt.Pick
}

// models/lobby.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

type LobbyStatus string

const (
	LobbyStatusNew        LobbyStatus = "new"
	LobbyStatusInProgress LobbyStatus = "in_progress"
	LobbyStatusEnded      LobbyStatus = "ended"
)

type PlayUntil string

const (
	PlayUntilForever  PlayUntil = "forever"
	PlayUntilMaxTurns PlayUntil = "max_turns"
	PlayUntilMaxScore PlayUntil = "max_score"
)

type DiscardCost string

const (
	DiscardCostFree            DiscardCost = "free"
	DiscardCostNoDiscard       DiscardCost = "no_discard"
	DiscardCostOneStar         DiscardCost = "1_star"
	DiscardCostOneFreeThenStar DiscardCost = "1_free_then_1_star"
	DiscardCostToken           DiscardCost = "token"
)

// LobbySettings are the dealing, weighting and scoring knobs of one lobby.
type LobbySettings struct {
	PlayUntil PlayUntil `json:"play_until"`
	MaxTurns  int       `json:"max_turns"`
	MaxScore  int       `json:"max_score"`

	CardsPerPerson int  `json:"cards_per_person"`
	NewCardsFirst  bool `json:"new_cards_first"`
	SortByID       bool `json:"sort_by_id"`

	SortFreqViews    bool    `json:"sort_freq_views"`
	SortFreqWins     bool    `json:"sort_freq_wins"`
	SortFreqLikes    bool    `json:"sort_freq_likes"`
	SortFreqDiscards bool    `json:"sort_freq_discards"`
	SortFreqRating   bool    `json:"sort_freq_rating"`
	SortFreqVotes    bool    `json:"sort_freq_votes"`
	SortMinFactor    float64 `json:"sort_min_factor"`
	SortViewsGrace   float64 `json:"sort_views_grace"`
	SortWinsBoost    float64 `json:"sort_wins_boost"`
	SortLikesBoost   float64 `json:"sort_likes_boost"`
	SortRatingBoost  float64 `json:"sort_rating_boost"`
	SortUpvoteOffset float64 `json:"sort_upvote_offset"`

	DiscardCost      DiscardCost `json:"discard_cost"`
	LikesPerToken    int         `json:"likes_per_token"`
	TurnsPerToken    int         `json:"turns_per_token"`
	MaxDiscardTokens int         `json:"max_discard_tokens"`

	EnableLikes      bool `json:"enable_likes"`
	AllowJoinMidGame bool `json:"allow_join_mid_game"`
	FreezeStats      bool `json:"freeze_stats"`
	AnswerTimerSec   int  `json:"answer_timer_sec"`
}

func DefaultLobbySettings() LobbySettings {
	return LobbySettings{
		PlayUntil:        PlayUntilForever,
		MaxTurns:         10,
		MaxScore:         5,
		CardsPerPerson:   10,
		NewCardsFirst:    true,
		SortFreqViews:    true,
		SortFreqWins:     true,
		SortFreqLikes:    true,
		SortFreqDiscards: true,
		SortFreqRating:   true,
		SortFreqVotes:    true,
		SortMinFactor:    0.1,
		SortViewsGrace:   15,
		SortWinsBoost:    0.5,
		SortLikesBoost:   0.5,
		SortRatingBoost:  0.25,
		SortUpvoteOffset: 0.5,
		DiscardCost:      DiscardCostToken,
		LikesPerToken:    3,
		TurnsPerToken:    5,
		MaxDiscardTokens: 3,
		EnableLikes:      true,
		AllowJoinMidGame: true,
	}
}

type GameLobby struct {
	ID            string                             `json:"id" gorm:"primaryKey"`
	CreatorUID    string                             `json:"creator_uid" gorm:"index;not null"`
	Status        LobbyStatus                        `json:"status" gorm:"index;default:'new'"`
	Settings      datatypes.JSONType[LobbySettings]  `json:"settings" gorm:"type:jsonb"`
	DeckIDs       datatypes.JSONSlice[string]        `json:"deck_ids" gorm:"type:jsonb"`
	CurrentTurnID string                             `json:"current_turn_id"`
	ResponseTags  datatypes.JSONType[map[string]int] `json:"response_tags" gorm:"type:jsonb"`

	Timestamps
}

// GameSettings returns the decoded settings.
func (l *GameLobby) GameSettings() LobbySettings {
	return l.Settings.Data()
}

// TagCounts returns the live per-tag counts, initializing the map if needed.
func (l *GameLobby) TagCounts() map[string]int {
	counts := l.ResponseTags.Data()
	if counts == nil {
		counts = map[string]int{}
		l.ResponseTags = datatypes.NewJSONType(counts)
	}
	return counts
}

type PlayerRole string

const (
	PlayerRolePlayer    PlayerRole = "player"
	PlayerRoleSpectator PlayerRole = "spectator"
)

type PlayerStatus string

const (
	PlayerStatusOnline PlayerStatus = "online"
	PlayerStatusLeft   PlayerStatus = "left"
	PlayerStatusKicked PlayerStatus = "kicked"
)

type PlayerInLobby struct {
	LobbyID string       `json:"lobby_id" gorm:"primaryKey"`
	UID     string       `json:"uid" gorm:"primaryKey"`
	Name    string       `json:"name"`
	Role    PlayerRole   `json:"role"`
	Status  PlayerStatus `json:"status"`
	IsBot   bool         `json:"is_bot"`

	// RandomIndex fixes the judge rotation order; assigned once at first join.
	RandomIndex  int64     `json:"random_index"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// IsActivePlayer is true for online participants who answer prompts and judge.
func (p *PlayerInLobby) IsActivePlayer() bool {
	return p.Status == PlayerStatusOnline && p.Role == PlayerRolePlayer
}

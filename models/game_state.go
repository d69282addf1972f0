// models/game_state.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// CardInGame is a lobby-owned snapshot of a deck card. DeckID and CardIDInDeck
// point back at the source card for statistics logging.
type CardInGame struct {
	LobbyID      string                      `json:"lobby_id" gorm:"primaryKey"`
	Kind         CardKind                    `json:"kind" gorm:"primaryKey"`
	ID           string                      `json:"id" gorm:"primaryKey"`
	DeckID       string                      `json:"deck_id"`
	CardIDInDeck string                      `json:"card_id_in_deck"`
	Content      string                      `json:"content"`
	Tags         datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`
	Pick         int                         `json:"pick,omitempty"`
	Action       ResponseAction              `json:"action,omitempty"`
	Views        int                         `json:"views"`
	RandomIndex  int64                       `json:"random_index" gorm:"index"`

	// Seq breaks RandomIndex ties in insertion order.
	Seq int64 `json:"-" gorm:"autoIncrement:false"`
}

func (CardInGame) TableName() string { return "lobby_cards" }

// LobbyCardTag indexes response cards by tag for the dealer query.
type LobbyCardTag struct {
	LobbyID string `gorm:"primaryKey"`
	CardID  string `gorm:"primaryKey"`
	Tag     string `gorm:"primaryKey"`
}

// LobbyCardID builds the lobby-unique card ID from its source deck.
func LobbyCardID(deckID, cardID string) string {
	return deckID + "_" + cardID
}

// NewCardInGame snapshots a deck card for a lobby.
func NewCardInGame(lobbyID string, card DeckCard, randomIndex int64) CardInGame {
	return CardInGame{
		LobbyID:      lobbyID,
		Kind:         card.Kind,
		ID:           LobbyCardID(card.DeckID, card.ID),
		DeckID:       card.DeckID,
		CardIDInDeck: card.ID,
		Content:      card.Content,
		Tags:         append(datatypes.JSONSlice[string]{}, card.Tags...),
		Pick:         card.Pick,
		Action:       card.Action,
		Views:        card.Views,
		RandomIndex:  randomIndex,
	}
}

// ResponseCardInHand is a dealt response card.
type ResponseCardInHand struct {
	CardInGame
	TimeDealt time.Time `json:"time_dealt"`
	Downvoted bool      `json:"downvoted,omitempty"`

	// ResolvedContent is set on action cards once the turn is in reading.
	ResolvedContent string `json:"resolved_content,omitempty"`
}

// DisplayContent is what players see for this card.
func (c ResponseCardInHand) DisplayContent() string {
	if c.ResolvedContent != "" {
		return c.ResolvedContent
	}
	return c.Content
}

type Hand map[string]ResponseCardInHand

type PlayerGameState struct {
	LobbyID   string                   `json:"lobby_id" gorm:"primaryKey"`
	UID       string                   `json:"uid" gorm:"primaryKey"`
	Hand      datatypes.JSONType[Hand] `json:"hand" gorm:"type:jsonb"`
	Discarded datatypes.JSONType[Hand] `json:"discarded" gorm:"type:jsonb"`

	Score         int `json:"score"`
	Likes         int `json:"likes"`
	Wins          int `json:"wins"`
	DiscardsUsed  int `json:"discards_used"`
	DiscardTokens int `json:"discard_tokens"`

	LastDiscardTurnID string                      `json:"last_discard_turn_id"`
	TagRequest        datatypes.JSONSlice[string] `json:"tag_request" gorm:"type:jsonb"`
}

func NewPlayerGameState(lobbyID, uid string) *PlayerGameState {
	return &PlayerGameState{
		LobbyID:   lobbyID,
		UID:       uid,
		Hand:      datatypes.NewJSONType(Hand{}),
		Discarded: datatypes.NewJSONType(Hand{}),
	}
}

// HandCards returns the live hand map; mutations are persisted on save.
func (s *PlayerGameState) HandCards() Hand {
	h := s.Hand.Data()
	if h == nil {
		h = Hand{}
		s.Hand = datatypes.NewJSONType(h)
	}
	return h
}

// DiscardedCards returns the live discard map.
func (s *PlayerGameState) DiscardedCards() Hand {
	d := s.Discarded.Data()
	if d == nil {
		d = Hand{}
		s.Discarded = datatypes.NewJSONType(d)
	}
	return d
}

// ClearDiscarded empties the pending discard set.
func (s *PlayerGameState) ClearDiscarded() {
	s.Discarded = datatypes.NewJSONType(Hand{})
}

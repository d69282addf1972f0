// models/deck.go
package models

import (
	"regexp"
	"sort"

	"gorm.io/datatypes"
)

// CardKind discriminates the two card variants stored in one table.
type CardKind string

const (
	CardKindPrompt   CardKind = "prompt"
	CardKindResponse CardKind = "response"
)

// ResponseAction marks a response card whose displayed text is computed at reveal time.
type ResponseAction string

const (
	ActionNone              ResponseAction = ""
	ActionRepeatLast        ResponseAction = "repeat_last"
	ActionRepeatPlayerFirst ResponseAction = "repeat_player_first"
	ActionRepeatPlayerLast  ResponseAction = "repeat_player_last"
	ActionInsertJudgeName   ResponseAction = "insert_judge_name"
)

// CardIDPattern matches automatically allocated card IDs.
var CardIDPattern = regexp.MustCompile(`^\d{4}$`)

// CardStats are the lifetime counters used by the weighting engine.
// Likes apply to responses only; Upvotes/Downvotes to prompts only.
type CardStats struct {
	Views     int `json:"views" gorm:"default:0"`
	Plays     int `json:"plays" gorm:"default:0"`
	Wins      int `json:"wins" gorm:"default:0"`
	Discards  int `json:"discards" gorm:"default:0"`
	Likes     int `json:"likes" gorm:"default:0"`
	Rating    int `json:"rating" gorm:"default:0"`
	Upvotes   int `json:"upvotes" gorm:"default:0"`
	Downvotes int `json:"downvotes" gorm:"default:0"`
}

// IsZero reports whether no counter is set.
func (s CardStats) IsZero() bool {
	return s == CardStats{}
}

// DeckCard is either a prompt (Pick > 0) or a response (Action), selected by Kind.
type DeckCard struct {
	DeckID  string                      `json:"deck_id" gorm:"primaryKey"`
	Kind    CardKind                    `json:"kind" gorm:"primaryKey"`
	ID      string                      `json:"id" gorm:"primaryKey"`
	Content string                      `json:"content" gorm:"not null"`
	Tags    datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`

	// Prompt payload
	Pick int `json:"pick,omitempty"`
	// Response payload
	Action ResponseAction `json:"action,omitempty"`

	CardStats `gorm:"embedded"`
}

func (c DeckCard) IsPrompt() bool { return c.Kind == CardKindPrompt }

type DeckTag struct {
	DeckID      string `json:"-" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"primaryKey"`
	Description string `json:"description"`
	Position    int    `json:"-"`
}

type Deck struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Tags        []DeckTag  `json:"tags" gorm:"foreignKey:DeckID"`
	Cards       []DeckCard `json:"cards,omitempty" gorm:"foreignKey:DeckID"`

	Timestamps
}

// Prompts returns the deck's prompt cards sorted by ID.
func (d *Deck) Prompts() []DeckCard {
	return d.cardsOfKind(CardKindPrompt)
}

// Responses returns the deck's response cards sorted by ID.
func (d *Deck) Responses() []DeckCard {
	return d.cardsOfKind(CardKindResponse)
}

func (d *Deck) cardsOfKind(kind CardKind) []DeckCard {
	var out []DeckCard
	for _, c := range d.Cards {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

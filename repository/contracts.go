// Package repository holds the persistence contracts of the game engine and
// their GORM and in-memory implementations.
package repository

import (
	"context"
	"errors"

	"github.com/Hunternif/cards-against-animals-sub000/models"
)

var ErrNotFound = errors.New("record not found")

// Tag sentinels accepted by CardTagRepository.QueryResponses. Real tag names
// may not start with ReservedTagPrefix.
const (
	ReservedTagPrefix = "__"
	AnyTag            = "__any_tag__"
	NoTags            = "__no_tags__"
)

// CardTagRepository is the lobby's remaining card pool.
type CardTagRepository interface {
	// QueryResponses returns up to limit response cards ordered by descending
	// random index, ties in insertion order. tagName may be AnyTag or NoTags.
	QueryResponses(ctx context.Context, lobbyID, tagName string, limit int) ([]models.CardInGame, error)
	QueryPrompts(ctx context.Context, lobbyID string, limit int) ([]models.CardInGame, error)
	AddCards(ctx context.Context, cards []models.CardInGame) error
	RemoveCards(ctx context.Context, lobbyID string, kind models.CardKind, ids []string) error
}

type LobbyStore interface {
	GetLobby(ctx context.Context, lobbyID string) (*models.GameLobby, error)
	CreateLobby(ctx context.Context, lobby *models.GameLobby) error
	UpdateLobby(ctx context.Context, lobby *models.GameLobby) error
	ListLobbiesByStatus(ctx context.Context, status models.LobbyStatus) ([]models.GameLobby, error)
}

type PlayerStore interface {
	GetPlayer(ctx context.Context, lobbyID, uid string) (*models.PlayerInLobby, error)
	ListPlayers(ctx context.Context, lobbyID string) ([]models.PlayerInLobby, error)
	SavePlayer(ctx context.Context, player *models.PlayerInLobby) error
}

type PlayerStateStore interface {
	GetPlayerState(ctx context.Context, lobbyID, uid string) (*models.PlayerGameState, error)
	ListPlayerStates(ctx context.Context, lobbyID string) ([]models.PlayerGameState, error)
	SavePlayerState(ctx context.Context, state *models.PlayerGameState) error
}

type TurnStore interface {
	GetTurn(ctx context.Context, lobbyID, turnID string) (*models.GameTurn, error)
	SaveTurn(ctx context.Context, turn *models.GameTurn) error
	GetResponse(ctx context.Context, lobbyID, turnID, uid string) (*models.PlayerResponse, error)
	ListResponses(ctx context.Context, lobbyID, turnID string) ([]models.PlayerResponse, error)
	SaveResponse(ctx context.Context, response *models.PlayerResponse) error
	DeleteResponse(ctx context.Context, lobbyID, turnID, uid string) error
}

type DeckStore interface {
	// GetDeck loads the deck with its tags and cards.
	GetDeck(ctx context.Context, deckID string) (*models.Deck, error)
	ListDecks(ctx context.Context) ([]models.Deck, error)
	// SaveDeck upserts the deck row and replaces its tag list.
	SaveDeck(ctx context.Context, deck *models.Deck) error
	SaveCards(ctx context.Context, cards []models.DeckCard) error
	IncrementCardStats(ctx context.Context, deckID string, kind models.CardKind, cardID string, delta models.CardStats) error
}

// Tx is the view of every store inside one atomic unit of work.
type Tx interface {
	CardTagRepository
	LobbyStore
	PlayerStore
	PlayerStateStore
	TurnStore
	DeckStore
}

// Store runs fn atomically. If fn returns an error nothing it wrote is kept.
type Store interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

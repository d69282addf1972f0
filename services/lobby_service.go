// services/lobby_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

// LobbyService manages lobby membership, settings and game start/end.
type LobbyService struct {
	Store  repository.Store
	Turns  *TurnService
	Now    func() time.Time
	NewRNG func(seed string) *utils.RNG
}

func NewLobbyService(store repository.Store, turns *TurnService) *LobbyService {
	return &LobbyService{
		Store:  store,
		Turns:  turns,
		Now:    time.Now,
		NewRNG: utils.FromStrSeedWithTimestamp,
	}
}

// LobbyView is everything a client needs to render the lobby for one user.
type LobbyView struct {
	Lobby     *models.GameLobby       `json:"lobby"`
	Players   []models.PlayerInLobby  `json:"players"`
	Turn      *models.GameTurn        `json:"turn,omitempty"`
	Submitted []string                `json:"submitted"`
	Responses []models.PlayerResponse `json:"responses"`
	Scores    map[string]int          `json:"scores"`
	State     *models.PlayerGameState `json:"state,omitempty"`
}

func validateSettings(s models.LobbySettings) error {
	switch s.PlayUntil {
	case models.PlayUntilForever, models.PlayUntilMaxTurns, models.PlayUntilMaxScore:
	default:
		return fmt.Errorf("%w: play_until %q", ErrInvalidInput, s.PlayUntil)
	}
	switch s.DiscardCost {
	case models.DiscardCostFree, models.DiscardCostNoDiscard, models.DiscardCostOneStar,
		models.DiscardCostOneFreeThenStar, models.DiscardCostToken:
	default:
		return fmt.Errorf("%w: discard_cost %q", ErrInvalidInput, s.DiscardCost)
	}
	switch {
	case s.PlayUntil == models.PlayUntilMaxTurns && s.MaxTurns < 1:
		return fmt.Errorf("%w: max_turns must be positive", ErrInvalidInput)
	case s.PlayUntil == models.PlayUntilMaxScore && s.MaxScore < 1:
		return fmt.Errorf("%w: max_score must be positive", ErrInvalidInput)
	case s.CardsPerPerson < 1:
		return fmt.Errorf("%w: cards_per_person must be positive", ErrInvalidInput)
	case s.SortMinFactor <= 0 || s.SortMinFactor > 1:
		return fmt.Errorf("%w: sort_min_factor must be in (0, 1]", ErrInvalidInput)
	case s.LikesPerToken < 0 || s.TurnsPerToken < 0 || s.MaxDiscardTokens < 0 || s.AnswerTimerSec < 0:
		return fmt.Errorf("%w: negative token or timer setting", ErrInvalidInput)
	}
	return nil
}

func (s *LobbyService) creatorLobby(ctx context.Context, tx repository.Tx, lobbyID, uid string) (*models.GameLobby, error) {
	lobby, err := tx.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.CreatorUID != uid {
		return nil, fmt.Errorf("%w: only the lobby creator can do that", ErrForbidden)
	}
	return lobby, nil
}

// CreateLobby opens a new lobby with default settings and seats the creator.
func (s *LobbyService) CreateLobby(ctx context.Context, creatorUID, creatorName string) (*models.GameLobby, error) {
	if strings.TrimSpace(creatorName) == "" {
		return nil, fmt.Errorf("%w: empty player name", ErrInvalidInput)
	}
	lobby := &models.GameLobby{
		ID:           uuid.NewString(),
		CreatorUID:   creatorUID,
		Status:       models.LobbyStatusNew,
		Settings:     datatypes.NewJSONType(models.DefaultLobbySettings()),
		ResponseTags: datatypes.NewJSONType(map[string]int{}),
	}
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.CreateLobby(ctx, lobby); err != nil {
			return err
		}
		_, err := s.joinTx(ctx, tx, lobby, creatorUID, creatorName, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[LOBBY] ✅ %s created lobby %s", creatorUID, lobby.ID)
	return lobby, nil
}

// JoinLobby seats uid in the lobby, or brings a player who left back online.
func (s *LobbyService) JoinLobby(ctx context.Context, lobbyID, uid, name string) (*models.PlayerInLobby, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty player name", ErrInvalidInput)
	}
	var player *models.PlayerInLobby
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		if lobby.Status == models.LobbyStatusEnded {
			return ErrLobbyEnded
		}
		player, err = s.joinTx(ctx, tx, lobby, uid, name, false)
		return err
	})
	return player, err
}

func (s *LobbyService) joinTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, uid, name string, bot bool) (*models.PlayerInLobby, error) {
	now := s.Now()
	player, err := tx.GetPlayer(ctx, lobby.ID, uid)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		role := models.PlayerRolePlayer
		if lobby.Status == models.LobbyStatusInProgress && !lobby.GameSettings().AllowJoinMidGame {
			role = models.PlayerRoleSpectator
		}
		player = &models.PlayerInLobby{
			LobbyID:     lobby.ID,
			UID:         uid,
			Name:        name,
			Role:        role,
			IsBot:       bot,
			RandomIndex: int64(s.NewRNG(lobby.ID + uid).RandomInt()),
			JoinedAt:    now,
		}
	case err != nil:
		return nil, err
	case player.Status == models.PlayerStatusKicked:
		return nil, fmt.Errorf("%w: %s was kicked from this lobby", ErrForbidden, uid)
	default:
		player.Name = name
	}
	player.Status = models.PlayerStatusOnline
	player.LastActiveAt = now
	if err := tx.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	if lobby.Status == models.LobbyStatusInProgress && player.Role == models.PlayerRolePlayer {
		if _, err := s.Turns.Dealer.DealCards(ctx, tx, lobby, uid); err != nil {
			return nil, err
		}
		if bot && lobby.CurrentTurnID != "" {
			turn, err := tx.GetTurn(ctx, lobby.ID, lobby.CurrentTurnID)
			if err != nil {
				return nil, err
			}
			if turn.Phase == models.TurnPhaseAnswering {
				if err := s.Turns.Bots.PlayBots(ctx, tx, lobby, turn); err != nil {
					return nil, err
				}
				if err := s.Turns.maybeStartReading(ctx, tx, lobby, turn); err != nil {
					return nil, err
				}
			}
		}
	}
	log.Printf("[LOBBY] %s joined lobby %s as %s", uid, lobby.ID, player.Role)
	return player, nil
}

// LeaveLobby marks uid as gone and lets the current turn react.
func (s *LobbyService) LeaveLobby(ctx context.Context, lobbyID, uid string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		return s.removeTx(ctx, tx, lobbyID, uid, models.PlayerStatusLeft)
	})
}

// KickPlayer removes uid from the lobby for good.
func (s *LobbyService) KickPlayer(ctx context.Context, lobbyID, creatorUID, uid string) error {
	if creatorUID == uid {
		return fmt.Errorf("%w: cannot kick yourself", ErrInvalidInput)
	}
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		if _, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID); err != nil {
			return err
		}
		return s.removeTx(ctx, tx, lobbyID, uid, models.PlayerStatusKicked)
	})
}

func (s *LobbyService) removeTx(ctx context.Context, tx repository.Tx, lobbyID, uid string, status models.PlayerStatus) error {
	lobby, err := tx.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	player, err := tx.GetPlayer(ctx, lobbyID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotInLobby
	}
	if err != nil {
		return err
	}
	player.Status = status
	if err := tx.SavePlayer(ctx, player); err != nil {
		return err
	}
	log.Printf("[LOBBY] %s is now %s in lobby %s", uid, status, lobbyID)
	return s.Turns.handlePlayerGoneTx(ctx, tx, lobby, uid)
}

// AddBot seats a server-driven player.
func (s *LobbyService) AddBot(ctx context.Context, lobbyID, creatorUID, name string) (*models.PlayerInLobby, error) {
	if strings.TrimSpace(name) == "" {
		name = "Bot"
	}
	var bot *models.PlayerInLobby
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID)
		if err != nil {
			return err
		}
		if lobby.Status == models.LobbyStatusEnded {
			return ErrLobbyEnded
		}
		bot, err = s.joinTx(ctx, tx, lobby, BotUIDPrefix+uuid.NewString(), name, true)
		return err
	})
	return bot, err
}

// AddDeck includes a deck in the lobby before the game starts.
func (s *LobbyService) AddDeck(ctx context.Context, lobbyID, creatorUID, deckID string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID)
		if err != nil {
			return err
		}
		if lobby.Status != models.LobbyStatusNew {
			return ErrLobbyStarted
		}
		if _, err := tx.GetDeck(ctx, deckID); err != nil {
			return err
		}
		for _, id := range lobby.DeckIDs {
			if id == deckID {
				return nil
			}
		}
		lobby.DeckIDs = append(lobby.DeckIDs, deckID)
		return tx.UpdateLobby(ctx, lobby)
	})
}

// UpdateSettings replaces the lobby settings. Only allowed before the game starts.
func (s *LobbyService) UpdateSettings(ctx context.Context, lobbyID, creatorUID string, settings models.LobbySettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID)
		if err != nil {
			return err
		}
		if lobby.Status != models.LobbyStatusNew {
			return ErrLobbyStarted
		}
		lobby.Settings = datatypes.NewJSONType(settings)
		return tx.UpdateLobby(ctx, lobby)
	})
}

// StartGame copies every selected deck into the lobby pool, weighted and
// shuffled, and opens the first turn.
func (s *LobbyService) StartGame(ctx context.Context, lobbyID, creatorUID string) (*models.GameTurn, error) {
	var turn *models.GameTurn
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID)
		if err != nil {
			return err
		}
		if lobby.Status != models.LobbyStatusNew {
			return ErrLobbyStarted
		}
		if len(lobby.DeckIDs) == 0 {
			return ErrNoDecks
		}

		settings := lobby.GameSettings()
		rng := s.NewRNG(lobby.ID)
		counts := lobby.TagCounts()
		var cards []models.CardInGame
		prompts := 0
		for _, deckID := range lobby.DeckIDs {
			deck, err := tx.GetDeck(ctx, deckID)
			if err != nil {
				return fmt.Errorf("load deck %s: %w", deckID, err)
			}
			for _, c := range deck.Cards {
				cards = append(cards, models.NewCardInGame(lobby.ID, c, GetCardIndex(c, rng, settings)))
				if c.IsPrompt() {
					prompts++
					continue
				}
				for _, tag := range c.Tags {
					counts[tag]++
				}
			}
		}
		if prompts == 0 {
			return ErrNoPrompts
		}
		if err := tx.AddCards(ctx, cards); err != nil {
			return err
		}
		lobby.Status = models.LobbyStatusInProgress
		if err := tx.UpdateLobby(ctx, lobby); err != nil {
			return err
		}
		log.Printf("[LOBBY] 🚀 lobby %s started with %d cards from %d decks", lobby.ID, len(cards), len(lobby.DeckIDs))

		turn, err = s.Turns.startNewTurnTx(ctx, tx, lobby)
		return err
	})
	return turn, err
}

// EndLobby stops the game for everyone.
func (s *LobbyService) EndLobby(ctx context.Context, lobbyID, creatorUID string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := s.creatorLobby(ctx, tx, lobbyID, creatorUID)
		if err != nil {
			return err
		}
		if lobby.Status == models.LobbyStatusEnded {
			return nil
		}
		return s.Turns.endLobbyTx(ctx, tx, lobby, "ended by creator")
	})
}

// Ping refreshes uid's presence.
func (s *LobbyService) Ping(ctx context.Context, lobbyID, uid string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		player, err := tx.GetPlayer(ctx, lobbyID, uid)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotInLobby
		}
		if err != nil {
			return err
		}
		player.LastActiveAt = s.Now()
		return tx.SavePlayer(ctx, player)
	})
}

// SweepInactivePlayers marks humans who stopped pinging as left and returns
// how many were removed.
func (s *LobbyService) SweepInactivePlayers(ctx context.Context, timeout time.Duration) (int, error) {
	var lobbies []models.GameLobby
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		lobbies, err = tx.ListLobbiesByStatus(ctx, models.LobbyStatusInProgress)
		return err
	})
	if err != nil {
		return 0, err
	}

	cutoff := s.Now().Add(-timeout)
	removed := 0
	for _, l := range lobbies {
		n := 0
		err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
			n = 0
			players, err := tx.ListPlayers(ctx, l.ID)
			if err != nil {
				return err
			}
			for _, p := range players {
				if p.IsBot || p.Status != models.PlayerStatusOnline || !p.LastActiveAt.Before(cutoff) {
					continue
				}
				if err := s.removeTx(ctx, tx, l.ID, p.UID, models.PlayerStatusLeft); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			log.Printf("[PRESENCE] failed to sweep lobby %s: %v", l.ID, err)
			continue
		}
		removed += n
	}
	return removed, nil
}

// GetLobbyView builds uid's view of the lobby. Other players' cards stay
// hidden until the turn reaches reading.
func (s *LobbyService) GetLobbyView(ctx context.Context, lobbyID, uid string) (*LobbyView, error) {
	view := &LobbyView{Scores: map[string]int{}, Submitted: []string{}, Responses: []models.PlayerResponse{}}
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		view.Lobby = lobby
		if view.Players, err = tx.ListPlayers(ctx, lobbyID); err != nil {
			return err
		}
		member := false
		for _, p := range view.Players {
			member = member || p.UID == uid
		}
		if !member {
			return ErrNotInLobby
		}

		states, err := tx.ListPlayerStates(ctx, lobbyID)
		if err != nil {
			return err
		}
		for i := range states {
			view.Scores[states[i].UID] = states[i].Score
			if states[i].UID == uid {
				view.State = &states[i]
			}
		}

		if lobby.CurrentTurnID == "" {
			return nil
		}
		if view.Turn, err = tx.GetTurn(ctx, lobbyID, lobby.CurrentTurnID); err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, lobbyID, lobby.CurrentTurnID)
		if err != nil {
			return err
		}
		for _, r := range responses {
			view.Submitted = append(view.Submitted, r.PlayerUID)
		}
		if !view.Turn.Phase.Before(models.TurnPhaseReading) {
			view.Responses = responses
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

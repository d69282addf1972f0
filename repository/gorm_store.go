// repository/gorm_store.go
package repository

import (
	"context"
	"errors"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates or updates every table the engine uses.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Deck{},
		&models.DeckTag{},
		&models.DeckCard{},
		&models.GameLobby{},
		&models.PlayerInLobby{},
		&models.PlayerGameState{},
		&models.CardInGame{},
		&models.LobbyCardTag{},
		&models.GameTurn{},
		&models.PlayerResponse{},
	)
}

func (s *GormStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

const cardHasTags = "EXISTS (SELECT 1 FROM lobby_card_tags t WHERE t.lobby_id = lobby_cards.lobby_id AND t.card_id = lobby_cards.id"

func (t *gormTx) QueryResponses(ctx context.Context, lobbyID, tagName string, limit int) ([]models.CardInGame, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := t.db.WithContext(ctx).
		Where("lobby_id = ? AND kind = ?", lobbyID, models.CardKindResponse)
	switch tagName {
	case AnyTag:
	case NoTags:
		q = q.Where("NOT " + cardHasTags + ")")
	default:
		q = q.Where(cardHasTags+" AND t.tag = ?)", tagName)
	}

	var cards []models.CardInGame
	err := q.Order("random_index DESC").Order("seq ASC").Limit(limit).Find(&cards).Error
	return cards, err
}

func (t *gormTx) QueryPrompts(ctx context.Context, lobbyID string, limit int) ([]models.CardInGame, error) {
	if limit <= 0 {
		return nil, nil
	}
	var cards []models.CardInGame
	err := t.db.WithContext(ctx).
		Where("lobby_id = ? AND kind = ?", lobbyID, models.CardKindPrompt).
		Order("random_index DESC").Order("seq ASC").
		Limit(limit).
		Find(&cards).Error
	return cards, err
}

func (t *gormTx) AddCards(ctx context.Context, cards []models.CardInGame) error {
	if len(cards) == 0 {
		return nil
	}
	db := t.db.WithContext(ctx)

	var maxSeq int64
	if err := db.Model(&models.CardInGame{}).
		Where("lobby_id = ?", cards[0].LobbyID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}

	rows := make([]models.CardInGame, len(cards))
	var tags []models.LobbyCardTag
	for i, c := range cards {
		c.Seq = maxSeq + int64(i) + 1
		rows[i] = c
		if c.Kind != models.CardKindResponse {
			continue
		}
		for _, tag := range c.Tags {
			tags = append(tags, models.LobbyCardTag{LobbyID: c.LobbyID, CardID: c.ID, Tag: tag})
		}
	}

	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 500).Error; err != nil {
		return err
	}
	if len(tags) > 0 {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(tags, 500).Error; err != nil {
			return err
		}
	}
	return nil
}

func (t *gormTx) RemoveCards(ctx context.Context, lobbyID string, kind models.CardKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	db := t.db.WithContext(ctx)
	if err := db.Where("lobby_id = ? AND kind = ? AND id IN ?", lobbyID, kind, ids).
		Delete(&models.CardInGame{}).Error; err != nil {
		return err
	}
	if kind == models.CardKindResponse {
		return db.Where("lobby_id = ? AND card_id IN ?", lobbyID, ids).
			Delete(&models.LobbyCardTag{}).Error
	}
	return nil
}

// GetLobby locks the lobby row for the rest of the transaction, which
// serializes all turn mutations of one lobby.
func (t *gormTx) GetLobby(ctx context.Context, lobbyID string) (*models.GameLobby, error) {
	var lobby models.GameLobby
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&lobby, "id = ?", lobbyID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lobby, nil
}

func (t *gormTx) CreateLobby(ctx context.Context, lobby *models.GameLobby) error {
	return t.db.WithContext(ctx).Create(lobby).Error
}

func (t *gormTx) UpdateLobby(ctx context.Context, lobby *models.GameLobby) error {
	return t.db.WithContext(ctx).Save(lobby).Error
}

func (t *gormTx) ListLobbiesByStatus(ctx context.Context, status models.LobbyStatus) ([]models.GameLobby, error) {
	var lobbies []models.GameLobby
	err := t.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&lobbies).Error
	return lobbies, err
}

func (t *gormTx) GetPlayer(ctx context.Context, lobbyID, uid string) (*models.PlayerInLobby, error) {
	var p models.PlayerInLobby
	if err := t.db.WithContext(ctx).First(&p, "lobby_id = ? AND uid = ?", lobbyID, uid).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) ListPlayers(ctx context.Context, lobbyID string) ([]models.PlayerInLobby, error) {
	var players []models.PlayerInLobby
	err := t.db.WithContext(ctx).Where("lobby_id = ?", lobbyID).Order("joined_at ASC").Order("uid ASC").Find(&players).Error
	return players, err
}

func (t *gormTx) SavePlayer(ctx context.Context, player *models.PlayerInLobby) error {
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(player).Error
}

func (t *gormTx) GetPlayerState(ctx context.Context, lobbyID, uid string) (*models.PlayerGameState, error) {
	var s models.PlayerGameState
	if err := t.db.WithContext(ctx).First(&s, "lobby_id = ? AND uid = ?", lobbyID, uid).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (t *gormTx) ListPlayerStates(ctx context.Context, lobbyID string) ([]models.PlayerGameState, error) {
	var states []models.PlayerGameState
	err := t.db.WithContext(ctx).Where("lobby_id = ?", lobbyID).Order("uid ASC").Find(&states).Error
	return states, err
}

func (t *gormTx) SavePlayerState(ctx context.Context, state *models.PlayerGameState) error {
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(state).Error
}

func (t *gormTx) GetTurn(ctx context.Context, lobbyID, turnID string) (*models.GameTurn, error) {
	var turn models.GameTurn
	if err := t.db.WithContext(ctx).First(&turn, "lobby_id = ? AND id = ?", lobbyID, turnID).Error; err != nil {
		return nil, translate(err)
	}
	return &turn, nil
}

func (t *gormTx) SaveTurn(ctx context.Context, turn *models.GameTurn) error {
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(turn).Error
}

func (t *gormTx) GetResponse(ctx context.Context, lobbyID, turnID, uid string) (*models.PlayerResponse, error) {
	var r models.PlayerResponse
	err := t.db.WithContext(ctx).
		First(&r, "lobby_id = ? AND turn_id = ? AND player_uid = ?", lobbyID, turnID, uid).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (t *gormTx) ListResponses(ctx context.Context, lobbyID, turnID string) ([]models.PlayerResponse, error) {
	var responses []models.PlayerResponse
	err := t.db.WithContext(ctx).
		Where("lobby_id = ? AND turn_id = ?", lobbyID, turnID).
		Order("reveal_index ASC").Order("created_at ASC").Order("player_uid ASC").
		Find(&responses).Error
	return responses, err
}

func (t *gormTx) SaveResponse(ctx context.Context, response *models.PlayerResponse) error {
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(response).Error
}

func (t *gormTx) DeleteResponse(ctx context.Context, lobbyID, turnID, uid string) error {
	return t.db.WithContext(ctx).
		Where("lobby_id = ? AND turn_id = ? AND player_uid = ?", lobbyID, turnID, uid).
		Delete(&models.PlayerResponse{}).Error
}

func (t *gormTx) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	var deck models.Deck
	err := t.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Cards").
		First(&deck, "id = ?", deckID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &deck, nil
}

func (t *gormTx) ListDecks(ctx context.Context) ([]models.Deck, error) {
	var decks []models.Deck
	err := t.db.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at ASC").
		Find(&decks).Error
	return decks, err
}

func (t *gormTx) SaveDeck(ctx context.Context, deck *models.Deck) error {
	db := t.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(deck).Error; err != nil {
		return err
	}
	if err := db.Where("deck_id = ?", deck.ID).Delete(&models.DeckTag{}).Error; err != nil {
		return err
	}
	if len(deck.Tags) == 0 {
		return nil
	}
	tags := make([]models.DeckTag, len(deck.Tags))
	for i, tag := range deck.Tags {
		tag.DeckID = deck.ID
		tag.Position = i
		tags[i] = tag
	}
	return db.Create(&tags).Error
}

func (t *gormTx) SaveCards(ctx context.Context, cards []models.DeckCard) error {
	if len(cards) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(cards, 500).Error
}

func (t *gormTx) IncrementCardStats(ctx context.Context, deckID string, kind models.CardKind, cardID string, delta models.CardStats) error {
	updates := map[string]interface{}{}
	add := func(column string, n int) {
		if n != 0 {
			updates[column] = gorm.Expr(column+" + ?", n)
		}
	}
	add("views", delta.Views)
	add("plays", delta.Plays)
	add("wins", delta.Wins)
	add("discards", delta.Discards)
	add("likes", delta.Likes)
	add("rating", delta.Rating)
	add("upvotes", delta.Upvotes)
	add("downvotes", delta.Downvotes)
	if len(updates) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).
		Model(&models.DeckCard{}).
		Where("deck_id = ? AND kind = ? AND id = ?", deckID, kind, cardID).
		UpdateColumns(updates).Error
}

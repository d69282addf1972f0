// repository/memory.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/models"
)

const (
	tableDecks     = "decks"
	tableDeckCards = "deck_cards"
	tableLobbies   = "lobbies"
	tablePlayers   = "players"
	tableStates    = "player_states"
	tableCards     = "lobby_cards"
	tableTurns     = "turns"
	tableResponses = "responses"
)

// MemoryStore keeps every record JSON-encoded in process memory. Transactions
// are serialized and work on a copy that replaces the live tables on commit.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string][]byte
	seq    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string]map[string][]byte{}}
}

func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{tables: make(map[string]map[string][]byte, len(m.tables)), seq: m.seq}
	for name, rows := range m.tables {
		cp := make(map[string][]byte, len(rows))
		for k, v := range rows {
			cp[k] = v
		}
		tx.tables[name] = cp
	}

	if err := fn(tx); err != nil {
		return err
	}
	m.tables = tx.tables
	m.seq = tx.seq
	return nil
}

type memoryTx struct {
	tables map[string]map[string][]byte
	seq    int64
}

// storedCard keeps the tie-break sequence, which is not part of the JSON form.
type storedCard struct {
	Card models.CardInGame `json:"card"`
	Seq  int64             `json:"seq"`
}

func key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

func (t *memoryTx) put(table, k string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rows, ok := t.tables[table]
	if !ok {
		rows = map[string][]byte{}
		t.tables[table] = rows
	}
	rows[k] = b
	return nil
}

func (t *memoryTx) remove(table, k string) {
	delete(t.tables[table], k)
}

func getRow[T any](t *memoryTx, table, k string) (*T, error) {
	b, ok := t.tables[table][k]
	if !ok {
		return nil, ErrNotFound
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// listRows decodes every row whose key starts with prefix, in key order.
func listRows[T any](t *memoryTx, table, prefix string) ([]T, error) {
	rows := t.tables[table]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal(rows[k], &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func hasTag(c models.CardInGame, tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (t *memoryTx) queryCards(lobbyID string, kind models.CardKind, limit int, keep func(models.CardInGame) bool) ([]models.CardInGame, error) {
	if limit <= 0 {
		return nil, nil
	}
	stored, err := listRows[storedCard](t, tableCards, key(lobbyID, string(kind), ""))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].Card.RandomIndex != stored[j].Card.RandomIndex {
			return stored[i].Card.RandomIndex > stored[j].Card.RandomIndex
		}
		return stored[i].Seq < stored[j].Seq
	})

	var out []models.CardInGame
	for _, s := range stored {
		if len(out) >= limit {
			break
		}
		if keep(s.Card) {
			s.Card.Seq = s.Seq
			out = append(out, s.Card)
		}
	}
	return out, nil
}

func (t *memoryTx) QueryResponses(_ context.Context, lobbyID, tagName string, limit int) ([]models.CardInGame, error) {
	return t.queryCards(lobbyID, models.CardKindResponse, limit, func(c models.CardInGame) bool {
		switch tagName {
		case AnyTag:
			return true
		case NoTags:
			return len(c.Tags) == 0
		default:
			return hasTag(c, tagName)
		}
	})
}

func (t *memoryTx) QueryPrompts(_ context.Context, lobbyID string, limit int) ([]models.CardInGame, error) {
	return t.queryCards(lobbyID, models.CardKindPrompt, limit, func(models.CardInGame) bool { return true })
}

func (t *memoryTx) AddCards(_ context.Context, cards []models.CardInGame) error {
	for _, c := range cards {
		t.seq++
		if err := t.put(tableCards, key(c.LobbyID, string(c.Kind), c.ID), storedCard{Card: c, Seq: t.seq}); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) RemoveCards(_ context.Context, lobbyID string, kind models.CardKind, ids []string) error {
	for _, id := range ids {
		t.remove(tableCards, key(lobbyID, string(kind), id))
	}
	return nil
}

func (t *memoryTx) GetLobby(_ context.Context, lobbyID string) (*models.GameLobby, error) {
	return getRow[models.GameLobby](t, tableLobbies, lobbyID)
}

func (t *memoryTx) CreateLobby(_ context.Context, lobby *models.GameLobby) error {
	now := time.Now()
	lobby.CreatedAt, lobby.UpdatedAt = now, now
	return t.put(tableLobbies, lobby.ID, lobby)
}

func (t *memoryTx) UpdateLobby(_ context.Context, lobby *models.GameLobby) error {
	if _, ok := t.tables[tableLobbies][lobby.ID]; !ok {
		return ErrNotFound
	}
	lobby.UpdatedAt = time.Now()
	return t.put(tableLobbies, lobby.ID, lobby)
}

func (t *memoryTx) ListLobbiesByStatus(_ context.Context, status models.LobbyStatus) ([]models.GameLobby, error) {
	all, err := listRows[models.GameLobby](t, tableLobbies, "")
	if err != nil {
		return nil, err
	}
	var out []models.GameLobby
	for _, l := range all {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memoryTx) GetPlayer(_ context.Context, lobbyID, uid string) (*models.PlayerInLobby, error) {
	return getRow[models.PlayerInLobby](t, tablePlayers, key(lobbyID, uid))
}

func (t *memoryTx) ListPlayers(_ context.Context, lobbyID string) ([]models.PlayerInLobby, error) {
	players, err := listRows[models.PlayerInLobby](t, tablePlayers, key(lobbyID, ""))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players, nil
}

func (t *memoryTx) SavePlayer(_ context.Context, player *models.PlayerInLobby) error {
	return t.put(tablePlayers, key(player.LobbyID, player.UID), player)
}

func (t *memoryTx) GetPlayerState(_ context.Context, lobbyID, uid string) (*models.PlayerGameState, error) {
	return getRow[models.PlayerGameState](t, tableStates, key(lobbyID, uid))
}

func (t *memoryTx) ListPlayerStates(_ context.Context, lobbyID string) ([]models.PlayerGameState, error) {
	return listRows[models.PlayerGameState](t, tableStates, key(lobbyID, ""))
}

func (t *memoryTx) SavePlayerState(_ context.Context, state *models.PlayerGameState) error {
	return t.put(tableStates, key(state.LobbyID, state.UID), state)
}

func (t *memoryTx) GetTurn(_ context.Context, lobbyID, turnID string) (*models.GameTurn, error) {
	return getRow[models.GameTurn](t, tableTurns, key(lobbyID, turnID))
}

func (t *memoryTx) SaveTurn(_ context.Context, turn *models.GameTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	return t.put(tableTurns, key(turn.LobbyID, turn.ID), turn)
}

func (t *memoryTx) GetResponse(_ context.Context, lobbyID, turnID, uid string) (*models.PlayerResponse, error) {
	return getRow[models.PlayerResponse](t, tableResponses, key(lobbyID, turnID, uid))
}

func (t *memoryTx) ListResponses(_ context.Context, lobbyID, turnID string) ([]models.PlayerResponse, error) {
	responses, err := listRows[models.PlayerResponse](t, tableResponses, key(lobbyID, turnID, ""))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(responses, func(i, j int) bool {
		if responses[i].RevealIndex != responses[j].RevealIndex {
			return responses[i].RevealIndex < responses[j].RevealIndex
		}
		return responses[i].CreatedAt.Before(responses[j].CreatedAt)
	})
	return responses, nil
}

func (t *memoryTx) SaveResponse(_ context.Context, response *models.PlayerResponse) error {
	if response.CreatedAt.IsZero() {
		response.CreatedAt = time.Now()
	}
	return t.put(tableResponses, key(response.LobbyID, response.TurnID, response.PlayerUID), response)
}

func (t *memoryTx) DeleteResponse(_ context.Context, lobbyID, turnID, uid string) error {
	t.remove(tableResponses, key(lobbyID, turnID, uid))
	return nil
}

func (t *memoryTx) GetDeck(_ context.Context, deckID string) (*models.Deck, error) {
	deck, err := getRow[models.Deck](t, tableDecks, deckID)
	if err != nil {
		return nil, err
	}
	for i := range deck.Tags {
		deck.Tags[i].DeckID = deck.ID
		deck.Tags[i].Position = i
	}
	deck.Cards, err = listRows[models.DeckCard](t, tableDeckCards, key(deckID, ""))
	if err != nil {
		return nil, err
	}
	return deck, nil
}

func (t *memoryTx) ListDecks(_ context.Context) ([]models.Deck, error) {
	decks, err := listRows[models.Deck](t, tableDecks, "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(decks, func(i, j int) bool {
		return decks[i].CreatedAt.Before(decks[j].CreatedAt)
	})
	return decks, nil
}

func (t *memoryTx) SaveDeck(_ context.Context, deck *models.Deck) error {
	now := time.Now()
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = now
	}
	deck.UpdatedAt = now
	row := *deck
	row.Cards = nil
	return t.put(tableDecks, deck.ID, row)
}

func (t *memoryTx) SaveCards(_ context.Context, cards []models.DeckCard) error {
	for _, c := range cards {
		if err := t.put(tableDeckCards, key(c.DeckID, string(c.Kind), c.ID), c); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTx) IncrementCardStats(_ context.Context, deckID string, kind models.CardKind, cardID string, delta models.CardStats) error {
	k := key(deckID, string(kind), cardID)
	card, err := getRow[models.DeckCard](t, tableDeckCards, k)
	if errors.Is(err, ErrNotFound) {
		// Same as an UPDATE matching no rows.
		return nil
	}
	if err != nil {
		return err
	}
	card.Views += delta.Views
	card.Plays += delta.Plays
	card.Wins += delta.Wins
	card.Discards += delta.Discards
	card.Likes += delta.Likes
	card.Rating += delta.Rating
	card.Upvotes += delta.Upvotes
	card.Downvotes += delta.Downvotes
	return t.put(tableDeckCards, k, card)
}

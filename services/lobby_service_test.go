package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/services"
)

func TestLobby_CreateSeatsCreator(t *testing.T) {
	f := newGame(t, nil)
	lobby := f.lobby(t)
	if lobby.Status != models.LobbyStatusNew || lobby.CreatorUID != "alice" {
		t.Errorf("lobby = %s by %s", lobby.Status, lobby.CreatorUID)
	}
	view, err := f.lobbies.GetLobbyView(f.ctx, f.lobbyID, "alice")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Players) != 1 || !view.Players[0].IsActivePlayer() {
		t.Errorf("players = %+v", view.Players)
	}
	if _, err := f.lobbies.GetLobbyView(f.ctx, f.lobbyID, "mallory"); !errors.Is(err, services.ErrNotInLobby) {
		t.Errorf("stranger view: got %v", err)
	}
	if _, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, "bob", "  "); !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("blank name: got %v", err)
	}
}

func TestLobby_CreatorOnlyOperations(t *testing.T) {
	f := newGame(t, nil, "bob")
	settings := models.DefaultLobbySettings()

	if err := f.lobbies.UpdateSettings(f.ctx, f.lobbyID, "bob", settings); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("bob updating settings: got %v", err)
	}
	if err := f.lobbies.AddDeck(f.ctx, f.lobbyID, "bob", f.deckID); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("bob adding deck: got %v", err)
	}
	if _, err := f.lobbies.StartGame(f.ctx, f.lobbyID, "bob"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("bob starting: got %v", err)
	}
	if err := f.lobbies.AddDeck(f.ctx, f.lobbyID, "alice", "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing deck: got %v", err)
	}

	bad := settings
	bad.SortMinFactor = 0
	if err := f.lobbies.UpdateSettings(f.ctx, f.lobbyID, "alice", bad); !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("zero min factor: got %v", err)
	}
	bad = settings
	bad.DiscardCost = "two_stars"
	if err := f.lobbies.UpdateSettings(f.ctx, f.lobbyID, "alice", bad); !errors.Is(err, services.ErrInvalidInput) {
		t.Errorf("unknown discard cost: got %v", err)
	}
}

func TestLobby_StartGame(t *testing.T) {
	f := newGame(t, nil, "bob")
	tagged := services.DeckImport{
		Title:     "Animals",
		Prompts:   []models.DeckCard{{Content: "What does the fox say? ___"}},
		Responses: []models.DeckCard{{Content: "A goose", Tags: []string{"birds"}}, {Content: "A duck", Tags: []string{"birds", "pond"}}},
	}
	res, err := f.decks.ImportDeck(f.ctx, tagged)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := f.lobbies.AddDeck(f.ctx, f.lobbyID, "alice", res.DeckID); err != nil {
		t.Fatalf("add deck: %v", err)
	}
	if err := f.lobbies.AddDeck(f.ctx, f.lobbyID, "alice", res.DeckID); err != nil {
		t.Fatalf("re-add deck: %v", err)
	}

	turn := f.start(t)
	if turn == nil || turn.Ordinal != 1 {
		t.Fatalf("first turn = %+v", turn)
	}
	lobby := f.lobby(t)
	if lobby.Status != models.LobbyStatusInProgress || lobby.CurrentTurnID != "01" || len(lobby.DeckIDs) != 2 {
		t.Errorf("lobby = %s turn %s decks %v", lobby.Status, lobby.CurrentTurnID, lobby.DeckIDs)
	}
	counts := lobby.TagCounts()
	dealtBirds, dealtPond := 0, 0
	for _, uid := range f.players {
		for _, c := range f.state(t, uid).HandCards() {
			for _, tag := range c.Tags {
				switch tag {
				case "birds":
					dealtBirds++
				case "pond":
					dealtPond++
				}
			}
		}
	}
	if counts["birds"]+dealtBirds != 2 || counts["pond"]+dealtPond != 1 {
		t.Errorf("tag counts = %v with %d birds and %d pond cards dealt", counts, dealtBirds, dealtPond)
	}

	if _, err := f.lobbies.StartGame(f.ctx, f.lobbyID, "alice"); !errors.Is(err, services.ErrLobbyStarted) {
		t.Errorf("second start: got %v", err)
	}
	if err := f.lobbies.UpdateSettings(f.ctx, f.lobbyID, "alice", models.DefaultLobbySettings()); !errors.Is(err, services.ErrLobbyStarted) {
		t.Errorf("settings after start: got %v", err)
	}
}

func TestLobby_StartWithoutDecks(t *testing.T) {
	f := newGame(t, nil, "bob")
	lobby, err := f.lobbies.CreateLobby(f.ctx, "carol", "Carol")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.lobbies.StartGame(f.ctx, lobby.ID, "carol"); !errors.Is(err, services.ErrNoDecks) {
		t.Errorf("start without decks: got %v", err)
	}
}

func TestLobby_JoinMidGame(t *testing.T) {
	tests := []struct {
		name     string
		allow    bool
		wantRole models.PlayerRole
		wantHand int
	}{
		{"allowed", true, models.PlayerRolePlayer, 3},
		{"spectate", false, models.PlayerRoleSpectator, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGame(t, func(s *models.LobbySettings) { s.AllowJoinMidGame = tt.allow }, "bob")
			f.start(t)
			p, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, "dave", "Dave")
			if err != nil {
				t.Fatalf("join: %v", err)
			}
			if p.Role != tt.wantRole {
				t.Errorf("role = %s, want %s", p.Role, tt.wantRole)
			}
			hand := 0
			_ = f.store.WithTransaction(f.ctx, func(tx repository.Tx) error {
				if st, err := tx.GetPlayerState(f.ctx, f.lobbyID, "dave"); err == nil {
					hand = len(st.HandCards())
				}
				return nil
			})
			if hand != tt.wantHand {
				t.Errorf("hand = %d, want %d", hand, tt.wantHand)
			}
		})
	}
}

func TestLobby_KickedPlayerCannotRejoin(t *testing.T) {
	f := newGame(t, nil, "bob")
	if err := f.lobbies.KickPlayer(f.ctx, f.lobbyID, "bob", "alice"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("bob kicking alice: got %v", err)
	}
	if err := f.lobbies.KickPlayer(f.ctx, f.lobbyID, "alice", "bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, "bob", "Bob"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("rejoin after kick: got %v", err)
	}
	if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, "mallory"); !errors.Is(err, services.ErrNotInLobby) {
		t.Errorf("stranger leaving: got %v", err)
	}
}

func TestLobby_LeftPlayerRejoins(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	f.start(t)
	if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, "carol"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	p, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, "carol", "Carol II")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if p.Status != models.PlayerStatusOnline || p.Name != "Carol II" {
		t.Errorf("rejoined player = %+v", p)
	}
}

func TestLobby_SweepInactivePlayers(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	f.start(t)

	f.clock = f.clock.Add(2 * time.Minute)
	if err := f.lobbies.Ping(f.ctx, f.lobbyID, "alice"); err != nil {
		t.Fatalf("ping: %v", err)
	}
	removed, err := f.lobbies.SweepInactivePlayers(f.ctx, time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d players, want 2", removed)
	}
	view, err := f.lobbies.GetLobbyView(f.ctx, f.lobbyID, "alice")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, p := range view.Players {
		if p.UID != "alice" && p.Status != models.PlayerStatusLeft {
			t.Errorf("%s status = %s, want left", p.UID, p.Status)
		}
	}
	if view.Lobby.Status != models.LobbyStatusInProgress {
		t.Errorf("lobby status = %s", view.Lobby.Status)
	}
}

func TestLobby_EndLobby(t *testing.T) {
	f := newGame(t, nil, "bob")
	f.start(t)
	if err := f.lobbies.EndLobby(f.ctx, f.lobbyID, "bob"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("bob ending: got %v", err)
	}
	if err := f.lobbies.EndLobby(f.ctx, f.lobbyID, "alice"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, "bob", nil); !errors.Is(err, services.ErrLobbyEnded) {
		t.Errorf("submit after end: got %v", err)
	}
	if _, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, "dave", "Dave"); !errors.Is(err, services.ErrLobbyEnded) {
		t.Errorf("join after end: got %v", err)
	}
}

func TestLobby_ViewHidesAnswersUntilReading(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	turn := f.start(t)
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, turn.JudgeUID); err != nil {
		t.Fatalf("play: %v", err)
	}
	player := f.nonJudges(turn)[0]
	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, player, f.hand(t, player)[:1]); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err := f.lobbies.GetLobbyView(f.ctx, f.lobbyID, turn.JudgeUID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Submitted) != 1 || view.Submitted[0] != player {
		t.Errorf("submitted = %v", view.Submitted)
	}
	if len(view.Responses) != 0 {
		t.Errorf("responses visible during answering: %+v", view.Responses)
	}
	if view.State == nil || view.State.UID != turn.JudgeUID {
		t.Errorf("view state = %+v", view.State)
	}
}

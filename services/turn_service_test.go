package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/services"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

type gameFixture struct {
	ctx     context.Context
	store   *repository.MemoryStore
	turns   *services.TurnService
	lobbies *services.LobbyService
	decks   *services.DeckService
	clock   time.Time
	deckID  string
	lobbyID string
	players []string
}

func testDeck(prompts, responses int) services.DeckImport {
	in := services.DeckImport{Title: "Test Deck"}
	for i := 1; i <= prompts; i++ {
		in.Prompts = append(in.Prompts, models.DeckCard{Content: fmt.Sprintf("Prompt %d: ___", i), Pick: 1})
	}
	for i := 1; i <= responses; i++ {
		in.Responses = append(in.Responses, models.DeckCard{Content: fmt.Sprintf("Response %d", i)})
	}
	return in
}

// newGame imports a deck, seats the creator "alice" plus the given players,
// applies configure to the default settings and starts the game.
func newGame(t *testing.T, configure func(*models.LobbySettings), players ...string) *gameFixture {
	t.Helper()
	f := &gameFixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	stats := services.NewStatsLogger()
	dealer := services.NewCardDealer(stats)
	dealer.Now = now
	f.turns = services.NewTurnService(f.store, dealer, services.NewBotDriver(), stats)
	f.turns.Now = now
	f.turns.NewRNG = utils.FromStrSeed
	f.lobbies = services.NewLobbyService(f.store, f.turns)
	f.lobbies.Now = now
	f.lobbies.NewRNG = utils.FromStrSeed
	f.decks = services.NewDeckService(f.store, nil)

	imported, err := f.decks.ImportDeck(f.ctx, testDeck(10, 40))
	if err != nil {
		t.Fatalf("import deck: %v", err)
	}
	f.deckID = imported.DeckID

	lobby, err := f.lobbies.CreateLobby(f.ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	f.lobbyID = lobby.ID
	f.players = []string{"alice"}
	for _, uid := range players {
		if _, err := f.lobbies.JoinLobby(f.ctx, f.lobbyID, uid, "Player "+uid); err != nil {
			t.Fatalf("join %s: %v", uid, err)
		}
		f.players = append(f.players, uid)
	}

	settings := models.DefaultLobbySettings()
	settings.CardsPerPerson = 3
	if configure != nil {
		configure(&settings)
	}
	if err := f.lobbies.UpdateSettings(f.ctx, f.lobbyID, "alice", settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if err := f.lobbies.AddDeck(f.ctx, f.lobbyID, "alice", f.deckID); err != nil {
		t.Fatalf("add deck: %v", err)
	}
	return f
}

func (f *gameFixture) start(t *testing.T) *models.GameTurn {
	t.Helper()
	turn, err := f.lobbies.StartGame(f.ctx, f.lobbyID, "alice")
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return turn
}

func (f *gameFixture) read(t *testing.T, fn func(tx repository.Tx) error) {
	t.Helper()
	if err := f.store.WithTransaction(f.ctx, fn); err != nil {
		t.Fatalf("read store: %v", err)
	}
}

func (f *gameFixture) lobby(t *testing.T) *models.GameLobby {
	t.Helper()
	var lobby *models.GameLobby
	f.read(t, func(tx repository.Tx) error {
		var err error
		lobby, err = tx.GetLobby(f.ctx, f.lobbyID)
		return err
	})
	return lobby
}

func (f *gameFixture) currentTurn(t *testing.T) *models.GameTurn {
	t.Helper()
	lobby := f.lobby(t)
	var turn *models.GameTurn
	f.read(t, func(tx repository.Tx) error {
		var err error
		turn, err = tx.GetTurn(f.ctx, f.lobbyID, lobby.CurrentTurnID)
		return err
	})
	return turn
}

func (f *gameFixture) state(t *testing.T, uid string) *models.PlayerGameState {
	t.Helper()
	var st *models.PlayerGameState
	f.read(t, func(tx repository.Tx) error {
		var err error
		st, err = tx.GetPlayerState(f.ctx, f.lobbyID, uid)
		return err
	})
	return st
}

func (f *gameFixture) hand(t *testing.T, uid string) []string {
	t.Helper()
	var ids []string
	for id := range f.state(t, uid).HandCards() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *gameFixture) deckCard(t *testing.T, card models.CardInGame) models.DeckCard {
	t.Helper()
	deck, err := f.decks.GetDeck(f.ctx, card.DeckID)
	if err != nil {
		t.Fatalf("get deck: %v", err)
	}
	for _, c := range deck.Cards {
		if c.Kind == card.Kind && c.ID == card.CardIDInDeck {
			return c
		}
	}
	t.Fatalf("card %s/%s not in deck", card.Kind, card.CardIDInDeck)
	return models.DeckCard{}
}

func (f *gameFixture) nonJudges(turn *models.GameTurn) []string {
	var out []string
	for _, uid := range f.players {
		if uid != turn.JudgeUID {
			out = append(out, uid)
		}
	}
	return out
}

// answerAll has every non-judge submit their first card.
func (f *gameFixture) answerAll(t *testing.T, turn *models.GameTurn) {
	t.Helper()
	for _, uid := range f.nonJudges(turn) {
		if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, uid, f.hand(t, uid)[:1]); err != nil {
			t.Fatalf("submit %s: %v", uid, err)
		}
	}
}

func TestTurn_FullRound(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	turn := f.start(t)
	if turn.ID != "01" || turn.Phase != models.TurnPhaseNew {
		t.Fatalf("first turn = %s/%s, want 01/new", turn.ID, turn.Phase)
	}
	for _, uid := range f.players {
		if got := len(f.hand(t, uid)); got != 3 {
			t.Errorf("%s holds %d cards, want 3", uid, got)
		}
	}

	judge := turn.JudgeUID
	others := f.nonJudges(turn)
	peeked, err := f.turns.PeekPrompt(f.ctx, f.lobbyID, judge)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, others[0]); !errors.Is(err, services.ErrNotJudge) {
		t.Errorf("non-judge play prompt: got %v, want ErrNotJudge", err)
	}
	turn, err = f.turns.PlayPrompt(f.ctx, f.lobbyID, judge)
	if err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	if prompt, _ := turn.PromptCard(); prompt.ID != peeked.ID {
		t.Errorf("played %s, peeked %s", prompt.ID, peeked.ID)
	}

	winnerCard := f.state(t, others[0]).HandCards()[f.hand(t, others[0])[0]]
	f.answerAll(t, turn)
	if len(f.hand(t, others[0])) != 2 {
		t.Errorf("submitted card still in hand")
	}
	if turn = f.currentTurn(t); turn.Phase != models.TurnPhaseReading {
		t.Fatalf("phase after all answered = %s, want reading", turn.Phase)
	}

	if err := f.turns.LikeResponse(f.ctx, f.lobbyID, others[1], others[1]); !errors.Is(err, services.ErrOwnResponse) {
		t.Errorf("self like: got %v", err)
	}
	if err := f.turns.LikeResponse(f.ctx, f.lobbyID, others[1], others[0]); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := f.turns.LikeResponse(f.ctx, f.lobbyID, others[1], others[0]); !errors.Is(err, services.ErrAlreadyLiked) {
		t.Errorf("double like: got %v", err)
	}
	if err := f.turns.PickWinner(f.ctx, f.lobbyID, others[1], others[0]); !errors.Is(err, services.ErrNotJudge) {
		t.Errorf("non-judge pick: got %v", err)
	}
	if err := f.turns.PickWinner(f.ctx, f.lobbyID, judge, others[0]); err != nil {
		t.Fatalf("pick winner: %v", err)
	}

	turn = f.currentTurn(t)
	if turn.Phase != models.TurnPhaseComplete || turn.WinnerUID != others[0] {
		t.Fatalf("turn = %s won by %q", turn.Phase, turn.WinnerUID)
	}
	st := f.state(t, others[0])
	if st.Score != 1 || st.Wins != 1 || st.Likes != 1 {
		t.Errorf("winner state = score %d wins %d likes %d, want 1/1/1", st.Score, st.Wins, st.Likes)
	}
	card := f.deckCard(t, winnerCard.CardInGame)
	if card.Wins != 1 || card.Likes != 1 || card.Plays != 1 || card.Views != 1 {
		t.Errorf("winning card stats = %+v", card.CardStats)
	}

	next, err := f.turns.StartNewTurn(f.ctx, f.lobbyID, "01")
	if err != nil {
		t.Fatalf("start turn 2: %v", err)
	}
	if next.ID != "02" || next.JudgeUID == judge {
		t.Errorf("turn 2 = %s judged by %s", next.ID, next.JudgeUID)
	}
	for _, uid := range f.players {
		if got := len(f.hand(t, uid)); got != 3 {
			t.Errorf("%s holds %d cards after refill, want 3", uid, got)
		}
	}

	stale, err := f.turns.StartNewTurn(f.ctx, f.lobbyID, "01")
	if err != nil || stale != nil {
		t.Errorf("stale start = %v, %v; want nil, nil", stale, err)
	}
	if id := f.lobby(t).CurrentTurnID; id != "02" {
		t.Errorf("current turn = %s after stale request", id)
	}
}

func TestTurn_SubmitResponseValidation(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	turn := f.start(t)
	judge, player := turn.JudgeUID, f.nonJudges(turn)[0]
	hand := f.hand(t, player)

	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, player, hand[:1]); !errors.Is(err, services.ErrWrongPhase) {
		t.Errorf("submit before prompt: got %v", err)
	}
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, judge); err != nil {
		t.Fatalf("play prompt: %v", err)
	}

	tests := []struct {
		name string
		uid  string
		ids  []string
		want error
	}{
		{"judge", judge, f.hand(t, judge)[:1], services.ErrForbidden},
		{"too many", player, hand[:2], services.ErrWrongCardCount},
		{"not in hand", player, []string{"nope"}, services.ErrCardNotInHand},
		{"stranger", "mallory", hand[:1], services.ErrNotInLobby},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, tt.uid, tt.ids); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, player, hand[:1]); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, player, hand[1:2]); !errors.Is(err, services.ErrAlreadyAnswered) {
		t.Errorf("second submit: got %v", err)
	}
	if err := f.turns.RetractResponse(f.ctx, f.lobbyID, player); err != nil {
		t.Fatalf("retract: %v", err)
	}
	if got := f.hand(t, player); !sameIDs(got, hand) {
		t.Errorf("hand after retract = %v, want %v", got, hand)
	}
}

func TestTurn_SkipPromptLogsDiscard(t *testing.T) {
	f := newGame(t, nil, "bob")
	turn := f.start(t)
	first, err := f.turns.PeekPrompt(f.ctx, f.lobbyID, turn.JudgeUID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	next, err := f.turns.SkipPrompt(f.ctx, f.lobbyID, turn.JudgeUID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if next == nil || next.ID == first.ID {
		t.Fatalf("next prompt = %v after skipping %s", next, first.ID)
	}
	if c := f.deckCard(t, *first); c.Discards != 1 || c.Views != 1 {
		t.Errorf("skipped prompt stats = %+v", c.CardStats)
	}
	played, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, turn.JudgeUID)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if p, _ := played.PromptCard(); p.ID != next.ID {
		t.Errorf("played %s, want %s", p.ID, next.ID)
	}
}

func TestTurn_EndsAfterMaxTurns(t *testing.T) {
	f := newGame(t, func(s *models.LobbySettings) {
		s.PlayUntil = models.PlayUntilMaxTurns
		s.MaxTurns = 1
	}, "bob")
	turn := f.start(t)
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, turn.JudgeUID); err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	f.answerAll(t, turn)
	if err := f.turns.PickWinner(f.ctx, f.lobbyID, turn.JudgeUID, f.nonJudges(turn)[0]); err != nil {
		t.Fatalf("pick: %v", err)
	}

	next, err := f.turns.StartNewTurn(f.ctx, f.lobbyID, "01")
	if err != nil {
		t.Fatalf("start new turn: %v", err)
	}
	if next != nil {
		t.Errorf("got turn %s, want none", next.ID)
	}
	if status := f.lobby(t).Status; status != models.LobbyStatusEnded {
		t.Errorf("lobby status = %s, want ended", status)
	}
	if _, err := f.turns.StartNewTurn(f.ctx, f.lobbyID, "01"); !errors.Is(err, services.ErrLobbyEnded) {
		t.Errorf("start after end: got %v", err)
	}
}

func TestTurn_DiscardCards(t *testing.T) {
	t.Run("free", func(t *testing.T) {
		f := newGame(t, func(s *models.LobbySettings) { s.DiscardCost = models.DiscardCostFree }, "bob")
		f.start(t)
		before := f.hand(t, "bob")
		ok, err := f.turns.DiscardCards(f.ctx, f.lobbyID, "bob", before[:2])
		if err != nil || !ok {
			t.Fatalf("discard = %v, %v", ok, err)
		}
		st := f.state(t, "bob")
		if len(st.HandCards()) != 3 || len(st.DiscardedCards()) != 2 {
			t.Errorf("hand %d discarded %d, want 3 and 2", len(st.HandCards()), len(st.DiscardedCards()))
		}
		for _, id := range before[:2] {
			if _, still := st.HandCards()[id]; still {
				t.Errorf("discarded card %s still in hand", id)
			}
		}
		if st.DiscardsUsed != 1 {
			t.Errorf("discards used = %d", st.DiscardsUsed)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		f := newGame(t, func(s *models.LobbySettings) { s.DiscardCost = models.DiscardCostNoDiscard }, "bob")
		f.start(t)
		before := f.hand(t, "bob")
		ok, err := f.turns.DiscardCards(f.ctx, f.lobbyID, "bob", before[:1])
		if err != nil || ok {
			t.Fatalf("discard = %v, %v; want false, nil", ok, err)
		}
		if got := f.hand(t, "bob"); !sameIDs(got, before) {
			t.Errorf("hand changed to %v", got)
		}
	})
}

func TestTurn_DownvotedCardLeavesHandAtTurnEnd(t *testing.T) {
	f := newGame(t, nil, "bob")
	turn := f.start(t)
	judge := turn.JudgeUID
	flagged := f.hand(t, judge)[0]
	card := f.state(t, judge).HandCards()[flagged]
	if err := f.turns.DownvoteCard(f.ctx, f.lobbyID, judge, flagged, true); err != nil {
		t.Fatalf("downvote: %v", err)
	}

	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, judge); err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	f.answerAll(t, turn)
	if err := f.turns.PickWinner(f.ctx, f.lobbyID, judge, f.nonJudges(turn)[0]); err != nil {
		t.Fatalf("pick: %v", err)
	}
	for _, id := range f.hand(t, judge) {
		if id == flagged {
			t.Errorf("downvoted card %s still in hand", flagged)
		}
	}
	if c := f.deckCard(t, card.CardInGame); c.Rating != -1 {
		t.Errorf("rating = %d, want -1", c.Rating)
	}
}

func TestTurn_VotePrompt(t *testing.T) {
	f := newGame(t, nil, "bob")
	turn := f.start(t)
	if err := f.turns.VotePrompt(f.ctx, f.lobbyID, "bob", models.PromptVoteUp); !errors.Is(err, services.ErrWrongPhase) {
		t.Errorf("vote before prompt: got %v", err)
	}
	turn, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, turn.JudgeUID)
	if err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	prompt, _ := turn.PromptCard()

	steps := []struct {
		vote                     models.PromptVote
		upvotes, downvotes, rate int
	}{
		{models.PromptVoteUp, 1, 0, 1},
		{models.PromptVoteUp, 1, 0, 1},
		{models.PromptVoteDown, 0, 1, -1},
		{models.PromptVoteNone, 0, 0, 0},
	}
	for i, step := range steps {
		if err := f.turns.VotePrompt(f.ctx, f.lobbyID, "bob", step.vote); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		c := f.deckCard(t, prompt)
		if c.Upvotes != step.upvotes || c.Downvotes != step.downvotes || c.Rating != step.rate {
			t.Errorf("step %d: stats = %+v", i, c.CardStats)
		}
	}
}

func TestTurn_JudgeLeavingSkipsTurn(t *testing.T) {
	f := newGame(t, nil, "bob", "carol")
	turn := f.start(t)
	if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, turn.JudgeUID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	next := f.currentTurn(t)
	if next.ID != "02" || next.JudgeUID == turn.JudgeUID {
		t.Errorf("after judge left: turn %s judged by %s", next.ID, next.JudgeUID)
	}
}

func TestTurn_AnswerTimerMovesToReading(t *testing.T) {
	f := newGame(t, func(s *models.LobbySettings) { s.AnswerTimerSec = 30 }, "bob", "carol")
	turn := f.start(t)
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, turn.JudgeUID); err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	player := f.nonJudges(turn)[0]
	if err := f.turns.SubmitResponse(f.ctx, f.lobbyID, player, f.hand(t, player)[:1]); err != nil {
		t.Fatalf("submit: %v", err)
	}

	f.clock = f.clock.Add(10 * time.Second)
	if n, err := f.turns.AdvanceExpiredTurns(f.ctx); err != nil || n != 0 {
		t.Fatalf("early advance = %d, %v", n, err)
	}
	f.clock = f.clock.Add(25 * time.Second)
	if n, err := f.turns.AdvanceExpiredTurns(f.ctx); err != nil || n != 1 {
		t.Fatalf("advance = %d, %v", n, err)
	}
	if phase := f.currentTurn(t).Phase; phase != models.TurnPhaseReading {
		t.Errorf("phase = %s, want reading", phase)
	}
}

func TestTurn_SetTagRequestRejectsReservedNames(t *testing.T) {
	f := newGame(t, nil, "bob")
	f.start(t)
	if err := f.turns.SetTagRequest(f.ctx, f.lobbyID, "bob", []string{"__secret"}); !errors.Is(err, services.ErrReservedTagName) {
		t.Errorf("reserved tag: got %v", err)
	}
	if err := f.turns.SetTagRequest(f.ctx, f.lobbyID, "bob", []string{repository.AnyTag, "animals"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	if got := f.state(t, "bob").TagRequest; len(got) != 2 || got[1] != "animals" {
		t.Errorf("tag request = %v", got)
	}
}

func TestTurn_LastAnswererLeavingClosesTurn(t *testing.T) {
	f := newGame(t, nil, "bob")
	turn := f.start(t)
	judge := turn.JudgeUID
	if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, judge); err != nil {
		t.Fatalf("play prompt: %v", err)
	}
	if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, f.nonJudges(turn)[0]); err != nil {
		t.Fatalf("leave: %v", err)
	}

	closed := f.currentTurn(t)
	if closed.Phase != models.TurnPhaseComplete || closed.WinnerUID != "" {
		t.Fatalf("turn %s is %s won by %q, want complete with no winner", closed.ID, closed.Phase, closed.WinnerUID)
	}
	next, err := f.turns.StartNewTurn(f.ctx, f.lobbyID, closed.ID)
	if err != nil {
		t.Fatalf("start next turn: %v", err)
	}
	if next == nil || next.ID != "02" || next.JudgeUID != judge {
		t.Errorf("next turn = %+v, want 02 judged by %s", next, judge)
	}
}

func TestTurn_MilestoneTokensWithoutWinner(t *testing.T) {
	milestoneEveryTurn := func(s *models.LobbySettings) {
		s.DiscardCost = models.DiscardCostToken
		s.TurnsPerToken = 1
		s.MaxDiscardTokens = 3
	}

	t.Run("judge forfeits", func(t *testing.T) {
		f := newGame(t, milestoneEveryTurn, "bob", "carol")
		turn := f.start(t)
		if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, turn.JudgeUID); err != nil {
			t.Fatalf("leave: %v", err)
		}
		for _, uid := range f.nonJudges(turn) {
			if got := f.state(t, uid).DiscardTokens; got != 1 {
				t.Errorf("%s holds %d tokens, want 1", uid, got)
			}
		}
	})

	t.Run("nobody answered", func(t *testing.T) {
		f := newGame(t, milestoneEveryTurn, "bob")
		turn := f.start(t)
		judge := turn.JudgeUID
		flagged := f.hand(t, judge)[0]
		if err := f.turns.DownvoteCard(f.ctx, f.lobbyID, judge, flagged, true); err != nil {
			t.Fatalf("downvote: %v", err)
		}
		if _, err := f.turns.PlayPrompt(f.ctx, f.lobbyID, judge); err != nil {
			t.Fatalf("play prompt: %v", err)
		}
		if err := f.lobbies.LeaveLobby(f.ctx, f.lobbyID, f.nonJudges(turn)[0]); err != nil {
			t.Fatalf("leave: %v", err)
		}
		st := f.state(t, judge)
		if st.DiscardTokens != 1 {
			t.Errorf("judge holds %d tokens, want 1", st.DiscardTokens)
		}
		if _, still := st.HandCards()[flagged]; still {
			t.Errorf("downvoted card %s still in hand", flagged)
		}
	})
}

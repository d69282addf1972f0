// services/turn_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

// TurnService drives a lobby's turns through new -> answering -> reading -> complete.
// Every operation runs in one transaction, which is the only serialization
// point between concurrent requests for the same lobby.
type TurnService struct {
	Store  repository.Store
	Dealer *CardDealer
	Bots   *BotDriver
	Stats  *StatsLogger
	Now    func() time.Time
	NewRNG func(seed string) *utils.RNG
}

func NewTurnService(store repository.Store, dealer *CardDealer, bots *BotDriver, stats *StatsLogger) *TurnService {
	return &TurnService{
		Store:  store,
		Dealer: dealer,
		Bots:   bots,
		Stats:  stats,
		Now:    time.Now,
		NewRNG: utils.FromStrSeedWithTimestamp,
	}
}

func getOrCreateState(ctx context.Context, tx repository.Tx, lobbyID, uid string) (*models.PlayerGameState, error) {
	state, err := tx.GetPlayerState(ctx, lobbyID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return models.NewPlayerGameState(lobbyID, uid), nil
	}
	return state, err
}

func (s *TurnService) advance(turn *models.GameTurn, to models.TurnPhase) error {
	if !turn.Phase.Before(to) {
		return fmt.Errorf("%w: turn %s is %s, cannot move to %s", ErrWrongPhase, turn.ID, turn.Phase, to)
	}
	turn.Phase = to
	turn.PhaseStartedAt = s.Now()
	return nil
}

// loadCurrentTurn returns the lobby (locked) and its current turn.
func (s *TurnService) loadCurrentTurn(ctx context.Context, tx repository.Tx, lobbyID string) (*models.GameLobby, *models.GameTurn, error) {
	lobby, err := tx.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case lobby.Status == models.LobbyStatusEnded:
		return nil, nil, ErrLobbyEnded
	case lobby.Status != models.LobbyStatusInProgress || lobby.CurrentTurnID == "":
		return nil, nil, ErrLobbyNotStarted
	}
	turn, err := tx.GetTurn(ctx, lobby.ID, lobby.CurrentTurnID)
	if err != nil {
		return nil, nil, err
	}
	return lobby, turn, nil
}

// activePlayer loads uid and checks they are an online player.
func activePlayer(ctx context.Context, tx repository.Tx, lobbyID, uid string) (*models.PlayerInLobby, error) {
	p, err := tx.GetPlayer(ctx, lobbyID, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotInLobby
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActivePlayer() {
		return nil, fmt.Errorf("%w: %s is %s/%s", ErrForbidden, uid, p.Status, p.Role)
	}
	return p, nil
}

func (s *TurnService) endLobbyTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, reason string) error {
	lobby.Status = models.LobbyStatusEnded
	log.Printf("[TURN] 🏁 lobby %s ended: %s", lobby.ID, reason)
	return tx.UpdateLobby(ctx, lobby)
}

// StartNewTurn begins the next turn. observedTurnID is the current turn the
// caller last saw; a mismatch means a duplicate request and is ignored with a
// nil turn and nil error.
func (s *TurnService) StartNewTurn(ctx context.Context, lobbyID, observedTurnID string) (*models.GameTurn, error) {
	var turn *models.GameTurn
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		switch lobby.Status {
		case models.LobbyStatusEnded:
			return ErrLobbyEnded
		case models.LobbyStatusNew:
			return ErrLobbyNotStarted
		}
		if lobby.CurrentTurnID != observedTurnID {
			log.Printf("[TURN] ignoring stale new-turn request for lobby %s: observed %q, current %q",
				lobbyID, observedTurnID, lobby.CurrentTurnID)
			return nil
		}
		turn, err = s.startNewTurnTx(ctx, tx, lobby)
		return err
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func endReason(settings models.LobbySettings, last *models.GameTurn, states []models.PlayerGameState) string {
	switch settings.PlayUntil {
	case models.PlayUntilMaxTurns:
		if last != nil && last.Ordinal >= settings.MaxTurns {
			return fmt.Sprintf("reached %d turns", settings.MaxTurns)
		}
	case models.PlayUntilMaxScore:
		for _, st := range states {
			if st.Score >= settings.MaxScore {
				return fmt.Sprintf("%s reached score %d", st.UID, settings.MaxScore)
			}
		}
	}
	return ""
}

// startNewTurnTx picks the next judge, creates the turn and deals to every
// online player. It returns a nil turn when the lobby ends instead.
func (s *TurnService) startNewTurnTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby) (*models.GameTurn, error) {
	var last *models.GameTurn
	if lobby.CurrentTurnID != "" {
		var err error
		if last, err = tx.GetTurn(ctx, lobby.ID, lobby.CurrentTurnID); err != nil {
			return nil, err
		}
		if last.Phase != models.TurnPhaseComplete {
			return nil, fmt.Errorf("%w: turn %s is still %s", ErrWrongPhase, last.ID, last.Phase)
		}
	}

	players, err := tx.ListPlayers(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	states, err := tx.ListPlayerStates(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	if reason := endReason(lobby.GameSettings(), last, states); reason != "" {
		return nil, s.endLobbyTx(ctx, tx, lobby, reason)
	}
	prompts, err := tx.QueryPrompts(ctx, lobby.ID, 1)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, s.endLobbyTx(ctx, tx, lobby, "out of prompts")
	}

	lastJudge, ordinal := "", 1
	if last != nil {
		lastJudge, ordinal = last.JudgeUID, last.Ordinal+1
	}
	judge := FindNextPlayer(JudgeSequence(players), lastJudge)
	if judge == nil {
		return nil, s.endLobbyTx(ctx, tx, lobby, "no players left")
	}

	turn := &models.GameTurn{
		LobbyID:        lobby.ID,
		ID:             models.TurnIDFor(ordinal),
		Ordinal:        ordinal,
		JudgeUID:       judge.UID,
		Phase:          models.TurnPhaseNew,
		PhaseStartedAt: s.Now(),
	}
	if err := tx.SaveTurn(ctx, turn); err != nil {
		return nil, err
	}
	lobby.CurrentTurnID = turn.ID
	lobby.Status = models.LobbyStatusInProgress
	if err := tx.UpdateLobby(ctx, lobby); err != nil {
		return nil, err
	}

	for _, p := range players {
		if !p.IsActivePlayer() {
			continue
		}
		state, err := getOrCreateState(ctx, tx, lobby.ID, p.UID)
		if err != nil {
			return nil, err
		}
		state.ClearDiscarded()
		if _, err := s.Dealer.DealToState(ctx, tx, lobby, state); err != nil {
			return nil, err
		}
	}
	log.Printf("[TURN] 🃏 lobby %s turn %s started, judge %s", lobby.ID, turn.ID, judge.UID)

	if judge.IsBot {
		if err := s.playPromptTx(ctx, tx, lobby, turn); err != nil {
			return nil, err
		}
	}
	return turn, nil
}

// judgeTurn loads the current turn and checks that uid judges it in phase.
func (s *TurnService) judgeTurn(ctx context.Context, tx repository.Tx, lobbyID, uid string, phase models.TurnPhase) (*models.GameLobby, *models.GameTurn, error) {
	lobby, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
	if err != nil {
		return nil, nil, err
	}
	if turn.JudgeUID != uid {
		return nil, nil, ErrNotJudge
	}
	if turn.Phase != phase {
		return nil, nil, fmt.Errorf("%w: turn %s is %s", ErrWrongPhase, turn.ID, turn.Phase)
	}
	return lobby, turn, nil
}

// PeekPrompt shows the judge the prompt that would be played next.
func (s *TurnService) PeekPrompt(ctx context.Context, lobbyID, uid string) (*models.CardInGame, error) {
	var prompt *models.CardInGame
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		if _, _, err := s.judgeTurn(ctx, tx, lobbyID, uid, models.TurnPhaseNew); err != nil {
			return err
		}
		prompts, err := tx.QueryPrompts(ctx, lobbyID, 1)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			return ErrNoPrompts
		}
		prompt = &prompts[0]
		return nil
	})
	return prompt, err
}

// SkipPrompt discards the suggested prompt and returns the next one, or nil if
// the pool is now empty.
func (s *TurnService) SkipPrompt(ctx context.Context, lobbyID, uid string) (*models.CardInGame, error) {
	var next *models.CardInGame
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, _, err := s.judgeTurn(ctx, tx, lobbyID, uid, models.TurnPhaseNew)
		if err != nil {
			return err
		}
		prompts, err := tx.QueryPrompts(ctx, lobbyID, 2)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			return ErrNoPrompts
		}
		if err := tx.RemoveCards(ctx, lobbyID, models.CardKindPrompt, []string{prompts[0].ID}); err != nil {
			return err
		}
		if err := s.Stats.Log(ctx, tx, lobby.GameSettings(), prompts[0], models.CardStats{Views: 1, Discards: 1}); err != nil {
			return err
		}
		if len(prompts) > 1 {
			next = &prompts[1]
		}
		return nil
	})
	return next, err
}

// PlayPrompt reveals the top prompt and opens the answering phase.
func (s *TurnService) PlayPrompt(ctx context.Context, lobbyID, uid string) (*models.GameTurn, error) {
	var turn *models.GameTurn
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, t, err := s.judgeTurn(ctx, tx, lobbyID, uid, models.TurnPhaseNew)
		if err != nil {
			return err
		}
		turn = t
		return s.playPromptTx(ctx, tx, lobby, turn)
	})
	return turn, err
}

func (s *TurnService) playPromptTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn) error {
	prompts, err := tx.QueryPrompts(ctx, lobby.ID, 1)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return ErrNoPrompts
	}
	prompt := prompts[0]
	if err := tx.RemoveCards(ctx, lobby.ID, models.CardKindPrompt, []string{prompt.ID}); err != nil {
		return err
	}
	turn.SetPrompt(prompt)
	if err := s.advance(turn, models.TurnPhaseAnswering); err != nil {
		return err
	}
	if err := tx.SaveTurn(ctx, turn); err != nil {
		return err
	}
	if err := s.Stats.Log(ctx, tx, lobby.GameSettings(), prompt, models.CardStats{Views: 1, Plays: 1}); err != nil {
		return err
	}

	if err := s.Bots.PlayBots(ctx, tx, lobby, turn); err != nil {
		return err
	}
	return s.maybeStartReading(ctx, tx, lobby, turn)
}

// submitResponse moves cardIDs from the player's hand into their response.
func submitResponse(ctx context.Context, tx repository.Tx, turn *models.GameTurn, player *models.PlayerInLobby, state *models.PlayerGameState, cardIDs []string) error {
	if _, err := tx.GetResponse(ctx, turn.LobbyID, turn.ID, player.UID); err == nil {
		return ErrAlreadyAnswered
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	prompt, _ := turn.PromptCard()
	if len(cardIDs) != models.PromptPick(prompt) {
		return fmt.Errorf("%w: need %d, got %d", ErrWrongCardCount, models.PromptPick(prompt), len(cardIDs))
	}
	hand := state.HandCards()
	cards := make([]models.ResponseCardInHand, 0, len(cardIDs))
	seen := map[string]bool{}
	for _, id := range cardIDs {
		if seen[id] {
			return fmt.Errorf("%w: card %s submitted twice", ErrInvalidInput, id)
		}
		seen[id] = true
		c, ok := hand[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotInHand, id)
		}
		cards = append(cards, c)
	}
	for _, id := range cardIDs {
		delete(hand, id)
	}
	if err := tx.SavePlayerState(ctx, state); err != nil {
		return err
	}
	return tx.SaveResponse(ctx, &models.PlayerResponse{
		LobbyID:    turn.LobbyID,
		TurnID:     turn.ID,
		PlayerUID:  player.UID,
		PlayerName: player.Name,
		Cards:      cards,
	})
}

// SubmitResponse plays cards from the player's hand into the current prompt.
func (s *TurnService) SubmitResponse(ctx context.Context, lobbyID, uid string, cardIDs []string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if turn.Phase != models.TurnPhaseAnswering {
			return fmt.Errorf("%w: turn %s is %s", ErrWrongPhase, turn.ID, turn.Phase)
		}
		player, err := activePlayer(ctx, tx, lobbyID, uid)
		if err != nil {
			return err
		}
		if uid == turn.JudgeUID {
			return fmt.Errorf("%w: the judge does not answer", ErrForbidden)
		}
		state, err := getOrCreateState(ctx, tx, lobbyID, uid)
		if err != nil {
			return err
		}
		if err := submitResponse(ctx, tx, turn, player, state, cardIDs); err != nil {
			return err
		}
		return s.maybeStartReading(ctx, tx, lobby, turn)
	})
}

// RetractResponse returns a submitted response to the player's hand.
func (s *TurnService) RetractResponse(ctx context.Context, lobbyID, uid string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		_, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if turn.Phase != models.TurnPhaseAnswering {
			return fmt.Errorf("%w: turn %s is %s", ErrWrongPhase, turn.ID, turn.Phase)
		}
		response, err := tx.GetResponse(ctx, lobbyID, turn.ID, uid)
		if err != nil {
			return err
		}
		state, err := getOrCreateState(ctx, tx, lobbyID, uid)
		if err != nil {
			return err
		}
		hand := state.HandCards()
		for _, c := range response.Cards {
			c.ResolvedContent = ""
			hand[c.ID] = c
		}
		if err := tx.DeleteResponse(ctx, lobbyID, turn.ID, uid); err != nil {
			return err
		}
		return tx.SavePlayerState(ctx, state)
	})
}

// maybeStartReading moves an answering turn to reading once every online
// non-judge player has answered. With nobody left to answer it closes the turn.
func (s *TurnService) maybeStartReading(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn) error {
	if turn.Phase != models.TurnPhaseAnswering {
		return nil
	}
	players, err := tx.ListPlayers(ctx, lobby.ID)
	if err != nil {
		return err
	}
	responses, err := tx.ListResponses(ctx, lobby.ID, turn.ID)
	if err != nil {
		return err
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		answered[r.PlayerUID] = true
	}
	for _, p := range players {
		if p.IsActivePlayer() && p.UID != turn.JudgeUID && !answered[p.UID] {
			return nil
		}
	}
	return s.startReadingTx(ctx, tx, lobby, turn)
}

// AdvanceToReading lets the judge stop waiting for missing answers.
func (s *TurnService) AdvanceToReading(ctx context.Context, lobbyID, uid string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.judgeTurn(ctx, tx, lobbyID, uid, models.TurnPhaseAnswering)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, lobbyID, turn.ID)
		if err != nil {
			return err
		}
		if len(responses) == 0 {
			return fmt.Errorf("%w: nobody has answered yet", ErrWrongPhase)
		}
		return s.startReadingTx(ctx, tx, lobby, turn)
	})
}

// startReadingTx fixes the reveal order, resolves action cards and logs plays.
func (s *TurnService) startReadingTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn) error {
	responses, err := tx.ListResponses(ctx, lobby.ID, turn.ID)
	if err != nil {
		return err
	}
	rng := s.NewRNG(lobby.ID + "/" + turn.ID)
	utils.ShuffleArray(rng, responses)
	for i := range responses {
		responses[i].RevealIndex = i
	}

	var previousWinner *models.PlayerResponse
	if turn.Ordinal > 1 {
		prev, err := tx.GetTurn(ctx, lobby.ID, models.TurnIDFor(turn.Ordinal-1))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if prev != nil && prev.WinnerUID != "" {
			previousWinner, err = tx.GetResponse(ctx, lobby.ID, prev.ID, prev.WinnerUID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
	}

	judge, err := tx.GetPlayer(ctx, lobby.ID, turn.JudgeUID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	judgeName := ""
	if judge != nil {
		judgeName = judge.Name
	}
	ResolveActionCards(responses, previousWinner, judgeName)

	settings := lobby.GameSettings()
	for i := range responses {
		if err := tx.SaveResponse(ctx, &responses[i]); err != nil {
			return err
		}
		if err := s.Stats.LogAll(ctx, tx, settings, handCards(responses[i].Cards), models.CardStats{Plays: 1}); err != nil {
			return err
		}
	}

	if err := s.advance(turn, models.TurnPhaseReading); err != nil {
		return err
	}
	if len(responses) == 0 {
		log.Printf("[TURN] lobby %s turn %s: no responses, closing turn", lobby.ID, turn.ID)
		return s.completeTurnTx(ctx, tx, lobby, turn, nil)
	}
	if err := tx.SaveTurn(ctx, turn); err != nil {
		return err
	}
	log.Printf("[TURN] lobby %s turn %s: reading %d responses", lobby.ID, turn.ID, len(responses))

	if judge != nil && judge.IsBot {
		winner := s.Bots.ChooseWinner(responses, rng)
		return s.pickWinnerTx(ctx, tx, lobby, turn, winner.PlayerUID)
	}
	return nil
}

// AdvanceExpiredTurns moves answering turns whose timer ran out to reading.
// It returns how many turns advanced.
func (s *TurnService) AdvanceExpiredTurns(ctx context.Context) (int, error) {
	var lobbies []models.GameLobby
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		var err error
		lobbies, err = tx.ListLobbiesByStatus(ctx, models.LobbyStatusInProgress)
		return err
	})
	if err != nil {
		return 0, err
	}

	now := s.Now()
	advanced := 0
	for _, l := range lobbies {
		timer := l.GameSettings().AnswerTimerSec
		if timer <= 0 {
			continue
		}
		moved := false
		err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
			lobby, turn, err := s.loadCurrentTurn(ctx, tx, l.ID)
			if err != nil {
				return err
			}
			if turn.Phase != models.TurnPhaseAnswering || now.Before(turn.PhaseStartedAt.Add(time.Duration(timer)*time.Second)) {
				return nil
			}
			moved = true
			return s.startReadingTx(ctx, tx, lobby, turn)
		})
		if err != nil {
			log.Printf("[Scheduler] failed to advance lobby %s: %v", l.ID, err)
			continue
		}
		if moved {
			advanced++
		}
	}
	return advanced, nil
}

// LikeResponse records a like from uid on another player's response.
func (s *TurnService) LikeResponse(ctx context.Context, lobbyID, uid, responseUID string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if !lobby.GameSettings().EnableLikes {
			return ErrLikesDisabled
		}
		if turn.Phase != models.TurnPhaseReading {
			return fmt.Errorf("%w: turn %s is %s", ErrWrongPhase, turn.ID, turn.Phase)
		}
		if uid == responseUID {
			return ErrOwnResponse
		}
		if _, err := tx.GetPlayer(ctx, lobbyID, uid); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotInLobby
			}
			return err
		}
		response, err := tx.GetResponse(ctx, lobbyID, turn.ID, responseUID)
		if err != nil {
			return err
		}
		if response.LikedByUser(uid) {
			return ErrAlreadyLiked
		}
		response.LikedBy = append(response.LikedBy, uid)
		return tx.SaveResponse(ctx, response)
	})
}

// PickWinner closes the turn with winnerUID's response as the winner.
func (s *TurnService) PickWinner(ctx context.Context, lobbyID, uid, winnerUID string) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.judgeTurn(ctx, tx, lobbyID, uid, models.TurnPhaseReading)
		if err != nil {
			return err
		}
		return s.pickWinnerTx(ctx, tx, lobby, turn, winnerUID)
	})
}

// pickWinnerTx completes the turn with winnerUID's response as the winner.
func (s *TurnService) pickWinnerTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn, winnerUID string) error {
	winner, err := tx.GetResponse(ctx, lobby.ID, turn.ID, winnerUID)
	if err != nil {
		return err
	}
	responses, err := tx.ListResponses(ctx, lobby.ID, turn.ID)
	if err != nil {
		return err
	}

	settings := lobby.GameSettings()
	likes := map[string]int{}
	for _, r := range responses {
		likes[r.PlayerUID] += len(r.LikedBy)
		if len(r.LikedBy) > 0 {
			if err := s.Stats.LogAll(ctx, tx, settings, handCards(r.Cards), models.CardStats{Likes: len(r.LikedBy)}); err != nil {
				return err
			}
		}
	}
	if err := s.Stats.LogAll(ctx, tx, settings, handCards(winner.Cards), models.CardStats{Wins: 1}); err != nil {
		return err
	}

	turn.WinnerUID = winnerUID
	if err := s.completeTurnTx(ctx, tx, lobby, turn, likes); err != nil {
		return err
	}
	log.Printf("[TURN] 🏆 lobby %s turn %s won by %s", lobby.ID, turn.ID, winnerUID)
	return nil
}

// completeTurnTx closes the turn and settles every player who took part:
// likes received, the winner's point, discard tokens for crossed milestones
// and the rating penalty for cards downvoted in hand. likes is keyed by the
// responder and may be nil.
func (s *TurnService) completeTurnTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, turn *models.GameTurn, likes map[string]int) error {
	if err := s.advance(turn, models.TurnPhaseComplete); err != nil {
		return err
	}
	if err := tx.SaveTurn(ctx, turn); err != nil {
		return err
	}
	players, err := tx.ListPlayers(ctx, lobby.ID)
	if err != nil {
		return err
	}

	settings := lobby.GameSettings()
	for _, p := range players {
		_, responded := likes[p.UID]
		if !p.IsActivePlayer() && !responded {
			continue
		}
		state, err := getOrCreateState(ctx, tx, lobby.ID, p.UID)
		if err != nil {
			return err
		}
		likesBefore := state.Likes
		state.Likes += likes[p.UID]
		if turn.WinnerUID != "" && p.UID == turn.WinnerUID {
			state.Score++
			state.Wins++
		}
		AwardDiscardTokens(state, likesBefore, turn.Ordinal, settings)

		hand := state.HandCards()
		for id, c := range hand {
			if !c.Downvoted {
				continue
			}
			if err := s.Stats.Log(ctx, tx, settings, c.CardInGame, models.CardStats{Rating: -1}); err != nil {
				return err
			}
			delete(hand, id)
		}
		if err := tx.SavePlayerState(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// DiscardCards swaps cards in hand for new ones if the discard cost can be
// paid. ok is false, with the hand untouched, when it cannot.
func (s *TurnService) DiscardCards(ctx context.Context, lobbyID, uid string, cardIDs []string) (bool, error) {
	ok := false
	err := s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if turn.Phase == models.TurnPhaseComplete {
			return fmt.Errorf("%w: turn %s is complete", ErrWrongPhase, turn.ID)
		}
		if _, err := activePlayer(ctx, tx, lobbyID, uid); err != nil {
			return err
		}
		if len(cardIDs) == 0 {
			return fmt.Errorf("%w: no cards to discard", ErrInvalidInput)
		}
		state, err := getOrCreateState(ctx, tx, lobbyID, uid)
		if err != nil {
			return err
		}
		hand := state.HandCards()
		for _, id := range cardIDs {
			if _, found := hand[id]; !found {
				return fmt.Errorf("%w: %s", ErrCardNotInHand, id)
			}
		}

		settings := lobby.GameSettings()
		if !PayDiscardCost(state, settings.DiscardCost, turn.ID) {
			log.Printf("[TURN] %s cannot pay discard cost %s in lobby %s", uid, settings.DiscardCost, lobbyID)
			return nil
		}

		discarded := state.DiscardedCards()
		var gone []models.CardInGame
		for _, id := range cardIDs {
			c, found := hand[id]
			if !found {
				continue
			}
			discarded[id] = c
			gone = append(gone, c.CardInGame)
			delete(hand, id)
		}
		if err := s.Stats.LogAll(ctx, tx, settings, gone, models.CardStats{Discards: 1}); err != nil {
			return err
		}
		if _, err := s.Dealer.DealToState(ctx, tx, lobby, state); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// DownvoteCard flags or unflags a card in the player's hand. Flagged cards
// lose a rating point and leave the hand when the turn completes.
func (s *TurnService) DownvoteCard(ctx context.Context, lobbyID, uid, cardID string, downvoted bool) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		state, err := tx.GetPlayerState(ctx, lobbyID, uid)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotInLobby
		}
		if err != nil {
			return err
		}
		hand := state.HandCards()
		c, ok := hand[cardID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
		}
		c.Downvoted = downvoted
		hand[cardID] = c
		return tx.SavePlayerState(ctx, state)
	})
}

// SetTagRequest stores the tags the player wants for their next dealt cards.
func (s *TurnService) SetTagRequest(ctx context.Context, lobbyID, uid string, tags []string) error {
	for _, tag := range tags {
		if tag == repository.AnyTag || tag == repository.NoTags {
			continue
		}
		if err := ValidateTagName(tag); err != nil {
			return err
		}
	}
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, err := tx.GetLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		if len(tags) > lobby.GameSettings().CardsPerPerson {
			return fmt.Errorf("%w: at most %d tags", ErrInvalidInput, lobby.GameSettings().CardsPerPerson)
		}
		if _, err := activePlayer(ctx, tx, lobbyID, uid); err != nil {
			return err
		}
		state, err := getOrCreateState(ctx, tx, lobbyID, uid)
		if err != nil {
			return err
		}
		state.TagRequest = append([]string(nil), tags...)
		return tx.SavePlayerState(ctx, state)
	})
}

func voteDelta(v models.PromptVote, sign int) models.CardStats {
	switch v {
	case models.PromptVoteUp:
		return models.CardStats{Upvotes: sign, Rating: sign}
	case models.PromptVoteDown:
		return models.CardStats{Downvotes: sign, Rating: -sign}
	}
	return models.CardStats{}
}

// VotePrompt records uid's up or down vote on the current prompt. A prompt's
// rating is always upvotes minus downvotes.
func (s *TurnService) VotePrompt(ctx context.Context, lobbyID, uid string, vote models.PromptVote) error {
	if vote != models.PromptVoteNone && vote != models.PromptVoteUp && vote != models.PromptVoteDown {
		return fmt.Errorf("%w: vote %q", ErrInvalidInput, vote)
	}
	return s.Store.WithTransaction(ctx, func(tx repository.Tx) error {
		lobby, turn, err := s.loadCurrentTurn(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		prompt, ok := turn.PromptCard()
		if !ok {
			return fmt.Errorf("%w: no prompt yet", ErrWrongPhase)
		}
		if _, err := tx.GetPlayer(ctx, lobbyID, uid); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotInLobby
			}
			return err
		}
		votes := turn.Votes()
		prev := votes[uid]
		if prev == vote {
			return nil
		}
		undo, do := voteDelta(prev, -1), voteDelta(vote, 1)
		delta := models.CardStats{
			Upvotes:   undo.Upvotes + do.Upvotes,
			Downvotes: undo.Downvotes + do.Downvotes,
			Rating:    undo.Rating + do.Rating,
		}
		if vote == models.PromptVoteNone {
			delete(votes, uid)
		} else {
			votes[uid] = vote
		}
		if err := tx.SaveTurn(ctx, turn); err != nil {
			return err
		}
		return s.Stats.Log(ctx, tx, lobby.GameSettings(), prompt, delta)
	})
}

// handlePlayerGoneTx reacts to a player leaving mid-game: the lobby ends
// when no human is left, a departed judge forfeits the turn, and answering
// may now be complete.
func (s *TurnService) handlePlayerGoneTx(ctx context.Context, tx repository.Tx, lobby *models.GameLobby, uid string) error {
	if lobby.Status != models.LobbyStatusInProgress || lobby.CurrentTurnID == "" {
		return nil
	}
	players, err := tx.ListPlayers(ctx, lobby.ID)
	if err != nil {
		return err
	}
	humans := 0
	for _, p := range players {
		if p.Status == models.PlayerStatusOnline && !p.IsBot {
			humans++
		}
	}
	if humans == 0 {
		return s.endLobbyTx(ctx, tx, lobby, "everyone left")
	}

	turn, err := tx.GetTurn(ctx, lobby.ID, lobby.CurrentTurnID)
	if err != nil {
		return err
	}
	if turn.JudgeUID == uid && turn.Phase != models.TurnPhaseComplete {
		log.Printf("[TURN] judge %s left lobby %s, skipping turn %s", uid, lobby.ID, turn.ID)
		if err := s.completeTurnTx(ctx, tx, lobby, turn, nil); err != nil {
			return err
		}
		_, err := s.startNewTurnTx(ctx, tx, lobby)
		return err
	}
	return s.maybeStartReading(ctx, tx, lobby, turn)
}

// ValidateTagName rejects empty names and names using the reserved prefix.
func ValidateTagName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty tag name", ErrInvalidInput)
	}
	if strings.HasPrefix(name, repository.ReservedTagPrefix) {
		return fmt.Errorf("%w: %s", ErrReservedTagName, name)
	}
	return nil
}

// services/errors.go
package services

import "errors"

var (
	ErrIDCollision     = errors.New("card ID collision after reassignment")
	ErrInvalidInput    = errors.New("invalid input")
	ErrReservedTagName = errors.New("tag name is reserved")
	ErrForbidden       = errors.New("not allowed")
	ErrNotJudge        = errors.New("only the judge can do this")
	ErrNotInLobby      = errors.New("player is not in this lobby")
	ErrLobbyEnded      = errors.New("lobby has ended")
	ErrLobbyStarted    = errors.New("lobby has already started")
	ErrLobbyNotStarted = errors.New("lobby has not started")
	ErrWrongPhase      = errors.New("action not allowed in the current turn phase")
	ErrNoPrompts       = errors.New("no prompts left in the deck")
	ErrNoDecks         = errors.New("lobby has no decks")
	ErrCardNotInHand   = errors.New("card is not in hand")
	ErrWrongCardCount  = errors.New("wrong number of cards for this prompt")
	ErrAlreadyAnswered = errors.New("response already submitted")
	ErrAlreadyLiked    = errors.New("response already liked")
	ErrOwnResponse     = errors.New("cannot like your own response")
	ErrLikesDisabled   = errors.New("likes are disabled in this lobby")
)

// handlers/errors.go
package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/services"
)

func errorStatus(err error) int {
	is := func(targets ...error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
	switch {
	case is(repository.ErrNotFound):
		return fiber.StatusNotFound
	case is(services.ErrForbidden, services.ErrNotJudge, services.ErrNotInLobby):
		return fiber.StatusForbidden
	case is(services.ErrWrongPhase, services.ErrLobbyEnded, services.ErrLobbyStarted, services.ErrLobbyNotStarted,
		services.ErrAlreadyAnswered, services.ErrAlreadyLiked, services.ErrNoPrompts, services.ErrNoDecks,
		services.ErrIDCollision, services.ErrLikesDisabled):
		return fiber.StatusConflict
	case is(services.ErrInvalidInput, services.ErrReservedTagName, services.ErrCardNotInHand,
		services.ErrWrongCardCount, services.ErrOwnResponse):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as {"error": ...} with the matching status.
func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"cause": err.Error(),
	})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func userName(c *fiber.Ctx) string {
	name, _ := c.Locals("user_name").(string)
	return name
}

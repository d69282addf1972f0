// handlers/turn_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/services"
)

type cardsRequest struct {
	CardIDs []string `json:"card_ids"`
}

func setupTurnRoutes(lobbies fiber.Router, turnService *services.TurnService) {
	turns := lobbies.Group("/:id/turns")

	turns.Post("/new", func(c *fiber.Ctx) error {
		var req struct {
			CurrentTurnID string `json:"current_turn_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		turn, err := turnService.StartNewTurn(c.Context(), c.Params("id"), req.CurrentTurnID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"turn": turn})
	})

	turns.Get("/prompt", func(c *fiber.Ctx) error {
		prompt, err := turnService.PeekPrompt(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prompt)
	})

	turns.Post("/prompt/play", func(c *fiber.Ctx) error {
		turn, err := turnService.PlayPrompt(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(turn)
	})

	turns.Post("/prompt/skip", func(c *fiber.Ctx) error {
		next, err := turnService.SkipPrompt(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"next": next})
	})

	turns.Post("/prompt/vote", func(c *fiber.Ctx) error {
		var req struct {
			Vote models.PromptVote `json:"vote"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := turnService.VotePrompt(c.Context(), c.Params("id"), userID(c), req.Vote); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	turns.Post("/responses", func(c *fiber.Ctx) error {
		var req cardsRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := turnService.SubmitResponse(c.Context(), c.Params("id"), userID(c), req.CardIDs); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	turns.Post("/responses/retract", func(c *fiber.Ctx) error {
		if err := turnService.RetractResponse(c.Context(), c.Params("id"), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	turns.Post("/responses/:uid/like", func(c *fiber.Ctx) error {
		if err := turnService.LikeResponse(c.Context(), c.Params("id"), userID(c), c.Params("uid")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	turns.Post("/reading", func(c *fiber.Ctx) error {
		if err := turnService.AdvanceToReading(c.Context(), c.Params("id"), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	turns.Post("/winner", func(c *fiber.Ctx) error {
		var req struct {
			UID string `json:"uid"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := turnService.PickWinner(c.Context(), c.Params("id"), userID(c), req.UID); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	hand := lobbies.Group("/:id/hand")

	hand.Post("/discard", func(c *fiber.Ctx) error {
		var req cardsRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		ok, err := turnService.DiscardCards(c.Context(), c.Params("id"), userID(c), req.CardIDs)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"discarded": ok})
	})

	hand.Post("/downvote", func(c *fiber.Ctx) error {
		var req struct {
			CardID    string `json:"card_id"`
			Downvoted bool   `json:"downvoted"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := turnService.DownvoteCard(c.Context(), c.Params("id"), userID(c), req.CardID, req.Downvoted); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	hand.Post("/tags", func(c *fiber.Ctx) error {
		var req struct {
			Tags []string `json:"tags"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := turnService.SetTagRequest(c.Context(), c.Params("id"), userID(c), req.Tags); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// handlers/deck_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Hunternif/cards-against-animals-sub000/middleware"
	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/services"
)

func SetupDeckRoutes(app *fiber.App, deckService *services.DeckService, sessionSecret string) {
	// 🌐 Public
	app.Get("/decks", func(c *fiber.Ctx) error {
		decks, err := deckService.ListDecks(c.Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(decks)
	})

	app.Get("/decks/:id", func(c *fiber.Ctx) error {
		deck, err := deckService.GetDeck(c.Context(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(deck)
	})

	// 🔐 Admin
	admin := app.Group("/admin/decks", middleware.UserContextMiddleware(sessionSecret), middleware.RequireRole("admin"))

	admin.Post("/", func(c *fiber.Ctx) error {
		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		deck, err := deckService.CreateDeck(c.Context(), req.Title, req.Description)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(deck)
	})

	admin.Post("/import", func(c *fiber.Ctx) error {
		var req services.DeckImport
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		res, err := deckService.ImportDeck(c.Context(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	admin.Post("/:id/tags", func(c *fiber.Ctx) error {
		var tag models.DeckTag
		if err := c.BodyParser(&tag); err != nil {
			return badBody(c, err)
		}
		deck, err := deckService.AddTag(c.Context(), c.Params("id"), tag)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(deck)
	})

	admin.Post("/:id/merge", func(c *fiber.Ctx) error {
		var req struct {
			SourceID string `json:"source_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		res, err := deckService.MergeDecks(c.Context(), req.SourceID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	admin.Post("/:id/copy", func(c *fiber.Ctx) error {
		var req struct {
			Prompts   []models.DeckCard `json:"prompts"`
			Responses []models.DeckCard `json:"responses"`
			Tags      []models.DeckTag  `json:"tags"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		res, err := deckService.CopyCardsToDeck(c.Context(), c.Params("id"), req.Prompts, req.Responses, req.Tags)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}

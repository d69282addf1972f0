// handlers/lobby_routes.go
package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Hunternif/cards-against-animals-sub000/middleware"
	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/services"
)

const sessionTTL = 30 * 24 * time.Hour

type nameRequest struct {
	Name string `json:"name"`
}

// SetupSessionRoutes lets anonymous players obtain a session token.
func SetupSessionRoutes(app *fiber.App, sessionSecret string) {
	app.Post("/sessions", func(c *fiber.Ctx) error {
		var req nameRequest
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		uid := uuid.NewString()
		token, err := middleware.IssueSessionToken(sessionSecret, uid, req.Name, sessionTTL)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"uid": uid, "name": req.Name, "token": token})
	})
}

// SetupLobbyRoutes registers the lobby, turn and hand routes plus the event stream.
func SetupLobbyRoutes(app *fiber.App, lobbyService *services.LobbyService, turnService *services.TurnService,
	events *services.LobbyEvents, sessionSecret string) {
	// The stream authenticates by query token, so it sits outside the secured group.
	app.Get("/lobbies/:id/events", middleware.SSEAuthMiddleware(sessionSecret), events.StreamLobbySSE)

	lobbies := app.Group("/lobbies", middleware.UserContextMiddleware(sessionSecret))

	lobbies.Post("/", func(c *fiber.Ctx) error {
		var req nameRequest
		_ = c.BodyParser(&req)
		if req.Name == "" {
			req.Name = userName(c)
		}
		lobby, err := lobbyService.CreateLobby(c.Context(), userID(c), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(lobby)
	})

	lobbies.Get("/:id", func(c *fiber.Ctx) error {
		view, err := lobbyService.GetLobbyView(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	lobbies.Post("/:id/join", func(c *fiber.Ctx) error {
		var req nameRequest
		_ = c.BodyParser(&req)
		if req.Name == "" {
			req.Name = userName(c)
		}
		player, err := lobbyService.JoinLobby(c.Context(), c.Params("id"), userID(c), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(player)
	})

	lobbies.Post("/:id/leave", func(c *fiber.Ctx) error {
		if err := lobbyService.LeaveLobby(c.Context(), c.Params("id"), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	lobbies.Post("/:id/ping", func(c *fiber.Ctx) error {
		if err := lobbyService.Ping(c.Context(), c.Params("id"), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	lobbies.Post("/:id/kick/:uid", func(c *fiber.Ctx) error {
		if err := lobbyService.KickPlayer(c.Context(), c.Params("id"), userID(c), c.Params("uid")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	lobbies.Post("/:id/bots", func(c *fiber.Ctx) error {
		var req nameRequest
		_ = c.BodyParser(&req)
		bot, err := lobbyService.AddBot(c.Context(), c.Params("id"), userID(c), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(bot)
	})

	lobbies.Post("/:id/decks", func(c *fiber.Ctx) error {
		var req struct {
			DeckID string `json:"deck_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
		if err := lobbyService.AddDeck(c.Context(), c.Params("id"), userID(c), req.DeckID); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	lobbies.Post("/:id/settings", func(c *fiber.Ctx) error {
		settings := models.DefaultLobbySettings()
		if err := c.BodyParser(&settings); err != nil {
			return badBody(c, err)
		}
		if err := lobbyService.UpdateSettings(c.Context(), c.Params("id"), userID(c), settings); err != nil {
			return respondError(c, err)
		}
		return c.JSON(settings)
	})

	lobbies.Post("/:id/start", func(c *fiber.Ctx) error {
		turn, err := lobbyService.StartGame(c.Context(), c.Params("id"), userID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"turn": turn})
	})

	lobbies.Post("/:id/end", func(c *fiber.Ctx) error {
		if err := lobbyService.EndLobby(c.Context(), c.Params("id"), userID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	setupTurnRoutes(lobbies, turnService)
}

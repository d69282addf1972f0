// services/lobby_events.go
package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Hunternif/cards-against-animals-sub000/models"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
)

// LobbyEvents pushes lobby snapshots to players over server-sent events.
type LobbyEvents struct {
	Lobbies  *LobbyService
	Interval time.Duration
}

func NewLobbyEvents(lobbies *LobbyService) *LobbyEvents {
	return &LobbyEvents{Lobbies: lobbies, Interval: 2 * time.Second}
}

// StreamLobbySSE streams the caller's lobby view whenever it changes. The
// stream closes after the lobby ends.
func (e *LobbyEvents) StreamLobbySSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}
	lobbyID := c.Params("id")

	first, err := e.Lobbies.GetLobbyView(c.Context(), lobbyID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "lobby not found"})
	case errors.Is(err, ErrNotInLobby):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(e.Interval)
		defer ticker.Stop()

		var last []byte
		send := func(view *LobbyView) bool {
			payload, err := json.Marshal(view)
			if err != nil {
				log.Printf("SSE encode error for lobby %s: %v", lobbyID, err)
				return true
			}
			if bytes.Equal(payload, last) {
				return true
			}
			last = payload
			fmt.Fprintf(w, "event: lobby\ndata: %s\n\n", payload)
			// Flush fails once the client is gone
			return w.Flush() == nil
		}

		if !send(first) || first.Lobby.Status == models.LobbyStatusEnded {
			return
		}
		for {
			select {
			case <-ticker.C:
				view, err := e.Lobbies.GetLobbyView(context.Background(), lobbyID, userID)
				if err != nil {
					log.Printf("SSE query error for lobby %s user %s: %v", lobbyID, userID, err)
					continue
				}
				if !send(view) || view.Lobby.Status == models.LobbyStatusEnded {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

// workers/player_presence_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/services"
)

// PlayerPresenceWorker marks players who stopped pinging as left.
type PlayerPresenceWorker struct {
	lobbies  *services.LobbyService
	interval time.Duration
	timeout  time.Duration
}

func NewPlayerPresenceWorker(lobbies *services.LobbyService, interval, timeout time.Duration) *PlayerPresenceWorker {
	return &PlayerPresenceWorker{
		lobbies:  lobbies,
		interval: interval,
		timeout:  timeout,
	}
}

func (w *PlayerPresenceWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting player presence worker (every %s, timeout %s)…", w.interval, w.timeout)
	go w.run(ctx)
}

func (w *PlayerPresenceWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := w.lobbies.SweepInactivePlayers(ctx, w.timeout)
			if err != nil {
				log.Printf("[PRESENCE] sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[PRESENCE] marked %d inactive players as left", removed)
			}
		case <-ctx.Done():
			log.Println("🛑 Player presence worker stopped")
			return
		}
	}
}

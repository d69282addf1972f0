package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Hunternif/cards-against-animals-sub000/handlers"
	"github.com/Hunternif/cards-against-animals-sub000/middleware"
	"github.com/Hunternif/cards-against-animals-sub000/repository"
	"github.com/Hunternif/cards-against-animals-sub000/services"
	"github.com/Hunternif/cards-against-animals-sub000/utils"
	"github.com/Hunternif/cards-against-animals-sub000/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openStore(cfg *utils.Config) repository.Store {
	if cfg.StoreDriver == utils.StoreDriverMemory {
		log.Println("⚠️  STORE_DRIVER=memory — games are lost on restart")
		return repository.NewMemoryStore()
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	store := repository.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	return store
}

func openSnapshots(ctx context.Context, cfg *utils.Config) services.SnapshotStore {
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Storage(ctx, cfg)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		log.Printf("✅ Deck snapshots go to R2 bucket %s", cfg.R2Bucket)
		return r2
	}
	local, err := utils.NewLocalStorage(cfg.ArchiveDir)
	if err != nil {
		log.Fatal("failed to ensure archive dir:", err)
	}
	log.Printf("⚠️  R2 not configured, deck snapshots go to %s", cfg.ArchiveDir)
	return local
}

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg)
	stats := services.NewStatsLogger()
	dealer := services.NewCardDealer(stats)
	turnService := services.NewTurnService(store, dealer, services.NewBotDriver(), stats)
	lobbyService := services.NewLobbyService(store, turnService)
	deckService := services.NewDeckService(store, openSnapshots(ctx, cfg))
	lobbyEvents := services.NewLobbyEvents(lobbyService)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // deck imports
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed (except /healthz)
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Session-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.SetupSessionRoutes(app, cfg.SessionSecret)
	handlers.SetupDeckRoutes(app, deckService, cfg.SessionSecret)
	handlers.SetupLobbyRoutes(app, lobbyService, turnService, lobbyEvents, cfg.SessionSecret)

	sched, err := turnService.StartPhaseScheduler(cfg.PhaseCheckInterval)
	if err != nil {
		log.Fatal("failed to start phase scheduler:", err)
	}
	workers.NewPlayerPresenceWorker(lobbyService, cfg.PresenceInterval, cfg.PresenceTimeout).Start(ctx)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s (store: %s)", cfg.Port, cfg.StoreDriver)
	log.Printf("✅ Phase scheduler running (every %s)", cfg.PhaseCheckInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

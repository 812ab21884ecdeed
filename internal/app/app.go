// Package app assembles the call server from configuration.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/voicecall-backend/database"
	"github.com/Ananth-NQI/voicecall-backend/internal/config"
	"github.com/Ananth-NQI/voicecall-backend/internal/jobs"
	"github.com/Ananth-NQI/voicecall-backend/internal/routes"
	"github.com/Ananth-NQI/voicecall-backend/internal/services"
	"github.com/Ananth-NQI/voicecall-backend/internal/storage"
	"github.com/Ananth-NQI/voicecall-backend/internal/tools"
)

// App is a fully wired call server.
type App struct {
	Config   *config.Config
	Server   *services.CallServer
	Tools    *tools.CallTools
	Fiber    *fiber.App
	watchdog *jobs.CallWatchdog
	db       *gorm.DB
}

// New builds the store, provider and HTTP app described by cfg and restores
// any persisted call.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, db, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	server := services.NewCallServer(services.NewCallSession(), provider, store, services.CallServerConfig{
		TargetNumber:              cfg.Call.TargetNumber,
		SourceNumber:              cfg.Call.SourceNumber,
		CallbackURL:               cfg.CallbackURL(),
		CognitiveServicesEndpoint: cfg.ACS.CognitiveServicesEndpoint,
		Voice:                     cfg.Call.Voice,
		ApologyMessage:            cfg.Call.ApologyMessage,
		Debug:                     cfg.LogLevel == "debug",
	})
	if err := server.Restore(ctx); err != nil {
		log.Printf("⚠️  Could not restore the previous call: %v", err)
	}

	poller := services.NewPollingClient(server, services.PollingOptions{
		Interval:       cfg.Polling.Interval,
		Timeout:        cfg.Polling.Timeout,
		GoodbyeMessage: cfg.Call.GoodbyeMessage,
	})
	callTools := tools.NewCallTools(server, poller, cfg.Call.GoodbyeMessage)

	app := NewFiberApp()
	routes.SetupRoutes(app, cfg, server, callTools)

	return &App{
		Config:   cfg,
		Server:   server,
		Tools:    callTools,
		Fiber:    app,
		watchdog: jobs.NewCallWatchdog(server, cfg.Call.MaxDuration, 0),
		db:       db,
	}, nil
}

// NewFiberApp creates the HTTP app with the standard middleware stack.
func NewFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Voice Call Backend v" + routes.Version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	return app
}

// NewProvider creates the telephony provider selected by cfg.Provider.
func NewProvider(cfg *config.Config) (services.TelephonyProvider, error) {
	switch cfg.Provider {
	case config.ProviderACS:
		provider, err := services.NewACSProvider(cfg.ACS.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ACS provider: %w", err)
		}
		log.Println("✅ ACS call automation initialized")
		return provider, nil
	case config.ProviderTwilio:
		provider, err := services.NewTwilioService(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.CallbackURL())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Twilio provider: %w", err)
		}
		log.Println("✅ Twilio service initialized")
		return provider, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func newStore(cfg *config.Config) (storage.Store, *gorm.DB, error) {
	if cfg.Store != config.StorePostgres {
		log.Println("⚠️  Using in-memory call storage; the current call is lost on restart")
		return storage.NewMemoryStore(), nil, nil
	}

	log.Println("📦 Connecting to PostgreSQL database...")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	log.Println("🔄 Running database migrations...")
	if err := storage.Migrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Using PostgreSQL database storage")
	return storage.NewDatabaseStore(db), db, nil
}

// Listen starts background jobs and serves HTTP until Shutdown.
func (a *App) Listen() error {
	a.watchdog.Start()

	log.Println("========================================")
	log.Printf("🚀 Voice Call Backend starting on port %s", a.Config.Port)
	log.Printf("📞 Provider: %s", a.Config.Provider)
	log.Printf("📊 Storage: %s", a.Config.Store)
	log.Printf("🌍 Environment: %s", a.Config.Environment)
	log.Printf("🔗 Callback URL: %s", a.Config.CallbackURL())
	log.Println("========================================")

	return a.Fiber.Listen(":" + a.Config.Port)
}

// Shutdown stops background jobs, the HTTP server and the database pool.
func (a *App) Shutdown(timeout time.Duration) error {
	log.Println("⏹️  Stopping call watchdog...")
	a.watchdog.Stop()

	log.Println("⏹️  Shutting down server...")
	err := a.Fiber.ShutdownWithTimeout(timeout)

	if a.db != nil {
		if sqlDB, dbErr := a.db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}
	return err
}

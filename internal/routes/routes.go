package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/voicecall-backend/internal/config"
	"github.com/Ananth-NQI/voicecall-backend/internal/handlers"
	"github.com/Ananth-NQI/voicecall-backend/internal/middleware"
	"github.com/Ananth-NQI/voicecall-backend/internal/services"
	"github.com/Ananth-NQI/voicecall-backend/internal/tools"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, server *services.CallServer, callTools *tools.CallTools) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Voice Call Backend",
			"version": Version,
			"endpoints": fiber.Map{
				"health":    "/health",
				"calls":     "/api/calls",
				"wait":      "/api/wait",
				"callbacks": config.CallbackPath,
			},
		})
	})

	health := handlers.NewHealthHandler(Version, cfg.Provider, cfg.Store, server)
	app.Get("/health", health.Check)

	// ========== PROVIDER CALLBACKS ==========
	callbacks := handlers.NewCallbackHandler(server)
	app.Post(config.CallbackPath, callbacks.HandleEvents)

	if cfg.Provider == config.ProviderTwilio {
		var guard []fiber.Handler
		if cfg.SkipWebhookValidation() {
			// Development: skip validation for tunnels like ngrok
			log.Println("⚠️  Twilio webhook validation DISABLED")
		} else {
			guard = append(guard, middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.Call.ServerHost))
		}
		app.Post(config.CallbackPath+services.TwilioStatusPath, append(guard, callbacks.TwilioStatus)...)
		app.Post(config.CallbackPath+services.TwilioGatherPath, append(guard, callbacks.TwilioGather)...)
		app.Post(config.CallbackPath+services.TwilioPlayedPath, append(guard, callbacks.TwilioPlayed)...)
	}

	// ========== CALL TOOLS ==========
	calls := handlers.NewCallHandler(callTools, server)
	api := app.Group("/api/calls", middleware.RequireAPIKey(cfg.APIKey))
	api.Post("/", calls.InitializeCall)
	api.Post("/wait", calls.MakeCallAndWait)
	api.Get("/current", calls.GetCurrentCall)
	api.Get("/current/response", calls.GetCallResponse)
	api.Get("/current/status", calls.GetCallStatus)

	app.Post("/api/wait", middleware.RequireAPIKey(cfg.APIKey), calls.Wait)
}

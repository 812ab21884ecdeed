package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/voicecall-backend/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Provider string
	Store    string
	server   services.CallController
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, provider, store string, server services.CallController) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Provider: provider,
		Store:    store,
		server:   server,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "OK",
		"service":     "Voice Call Backend",
		"version":     h.Version,
		"provider":    h.Provider,
		"storage":     h.Store,
		"call_status": h.server.Snapshot().Status.String(),
	})
}

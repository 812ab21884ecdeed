package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/voicecall-backend/internal/services"
	"github.com/Ananth-NQI/voicecall-backend/internal/tools"
)

// CallHandler serves the call tools over REST.
type CallHandler struct {
	tools  *tools.CallTools
	server services.CallController
}

func NewCallHandler(callTools *tools.CallTools, server services.CallController) *CallHandler {
	return &CallHandler{tools: callTools, server: server}
}

// CallRequest is the body of POST /api/calls and POST /api/calls/wait.
type CallRequest struct {
	Message string `json:"message"`
}

func parseMessage(c *fiber.Ctx) (string, error) {
	var req CallRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "message is required")
	}
	return message, nil
}

// InitializeCall starts a call and returns immediately.
func (h *CallHandler) InitializeCall(c *fiber.Ctx) error {
	message, err := parseMessage(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": h.tools.InitializeCall(c.UserContext(), message)})
}

// MakeCallAndWait starts a call and holds the request until it has a result.
func (h *CallHandler) MakeCallAndWait(c *fiber.Ctx) error {
	message, err := parseMessage(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": h.tools.MakeCallAndWait(c.UserContext(), message)})
}

// WaitRequest is the body of POST /api/wait.
type WaitRequest struct {
	Seconds *int `json:"seconds"`
}

// Wait holds the request for the given number of seconds so an agent can
// pace its polling of the call response.
func (h *CallHandler) Wait(c *fiber.Ctx) error {
	var req WaitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Seconds == nil {
		return fiber.NewError(fiber.StatusBadRequest, "seconds is required")
	}
	return c.JSON(fiber.Map{"result": tools.Wait(c.UserContext(), *req.Seconds)})
}

func (h *CallHandler) GetCallResponse(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": h.tools.GetCallResponse()})
}

func (h *CallHandler) GetCallStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": h.tools.GetCallStatus()})
}

// GetCurrentCall returns the status text plus the full call slot.
func (h *CallHandler) GetCurrentCall(c *fiber.Ctx) error {
	snap := h.server.Snapshot()

	call := fiber.Map{
		"call_connection_id": snap.ConnectionID,
		"status":             snap.Status.String(),
		"start_message":      snap.StartMessage,
		"end_message":        snap.EndMessage,
		"response":           nil,
	}
	if snap.HasResponse {
		call["response"] = snap.Response
	}
	if !snap.StartedAt.IsZero() {
		call["started_at"] = snap.StartedAt.Format(time.RFC3339)
	}

	return c.JSON(fiber.Map{
		"result": h.tools.GetCallStatus(),
		"call":   call,
	})
}

package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
	"github.com/Ananth-NQI/voicecall-backend/internal/services"
)

// CallbackHandler receives provider webhooks and feeds them to the call server.
type CallbackHandler struct {
	server *services.CallServer
}

func NewCallbackHandler(server *services.CallServer) *CallbackHandler {
	return &CallbackHandler{server: server}
}

// HandleEvents accepts a batch of Call Automation events. Entries that
// cannot be parsed are skipped; only a body that is not an event array is
// rejected.
func (h *CallbackHandler) HandleEvents(c *fiber.Ctx) error {
	n, err := h.server.HandleBatch(c.UserContext(), c.Body())
	if errors.Is(err, models.ErrNotEventBatch) {
		log.Printf("❌ Rejected callback body: %v", err)
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok", "events": n})
}

// TwilioStatus handles the call status callback.
func (h *CallbackHandler) TwilioStatus(c *fiber.Ctx) error {
	callSid := c.FormValue("CallSid")
	if callSid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing CallSid")
	}
	ev := services.TwilioStatusEvent(callSid, c.FormValue("CallStatus"))
	return h.dispatch(c, ev)
}

// TwilioGather handles the <Gather> action with the caller's transcript.
func (h *CallbackHandler) TwilioGather(c *fiber.Ctx) error {
	callSid := c.FormValue("CallSid")
	if callSid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing CallSid")
	}
	ev := services.TwilioGatherEvent(callSid, c.FormValue("SpeechResult"))
	return h.dispatch(c, ev)
}

// TwilioPlayed handles the redirect that follows an announcement.
func (h *CallbackHandler) TwilioPlayed(c *fiber.Ctx) error {
	callSid := c.FormValue("CallSid")
	if callSid == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing CallSid")
	}
	return h.dispatch(c, services.TwilioPlayedEvent(callSid))
}

// dispatch handles ev and answers Twilio with TwiML that keeps the call
// parked until the server updates it.
func (h *CallbackHandler) dispatch(c *fiber.Ctx, ev models.Event) error {
	if err := h.server.HandleEvent(c.UserContext(), ev); err != nil {
		log.Printf("❌ %s for call %s: %v", ev.EventType(), ev.ConnectionID(), err)
	}

	doc, err := services.HoldTwiML()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXML)
	return c.SendString(doc)
}

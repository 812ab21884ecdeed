package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/Ananth-NQI/voicecall-backend/internal/services"
)

// MaxWait caps Wait.
const MaxWait = 300 * time.Second

// CallTools exposes the call server as text-in, text-out functions for an
// agent. Every failure is reported in the returned text.
type CallTools struct {
	server  services.CallController
	poller  *services.PollingClient
	goodbye string
}

func NewCallTools(server services.CallController, poller *services.PollingClient, goodbye string) *CallTools {
	if goodbye == "" {
		goodbye = services.DefaultGoodbyeMessage
	}
	return &CallTools{server: server, poller: poller, goodbye: goodbye}
}

// InitializeCall places a call with message and returns without waiting
// for the answer.
func (c *CallTools) InitializeCall(ctx context.Context, message string) string {
	if c.server.IsActive() {
		return services.AlreadyActiveMessage
	}

	receipt, err := c.server.RequestCall(ctx, message, c.goodbye)
	if err != nil {
		return services.RequestCallErrorText(err)
	}
	if receipt.ConnectionID == "" {
		return "Failed to initiate call"
	}
	return fmt.Sprintf("Call initiated successfully. Call ID: %s. Message sent: '%s'", receipt.ConnectionID, message)
}

// GetCallResponse returns the recorded answer, or explains why there is none.
func (c *CallTools) GetCallResponse() string {
	snap := c.server.Snapshot()
	if snap.HasResponse && snap.Response != "" {
		return snap.Response
	}

	switch snap.Status {
	case services.StatusActive:
		return "Call is still active. Please wait for the call to complete."
	case services.StatusFailed:
		return "Call failed. No response received."
	case services.StatusIdle:
		if c.server.IsActive() {
			return "Call is still active. Please wait for the call to complete."
		}
		return "No active call found. Please initialize a call first."
	default:
		return "No response available for this call."
	}
}

func (c *CallTools) GetCallStatus() string {
	snap := c.server.Snapshot()
	if snap.Status == services.StatusIdle {
		return "No active call."
	}
	return "Call status: " + snap.Status.String()
}

// MakeCallAndWait places a call and blocks until it has an answer or the
// poll timeout passes.
func (c *CallTools) MakeCallAndWait(ctx context.Context, message string) string {
	return c.poller.MakeCallAndWait(ctx, message)
}

// Wait sleeps for seconds, up to MaxWait, or until ctx is done.
func Wait(ctx context.Context, seconds int) string {
	if seconds < 0 {
		return "Error: Cannot wait for negative seconds."
	}
	if seconds > int(MaxWait/time.Second) {
		return "Error: Maximum wait time is 300 seconds (5 minutes)."
	}

	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return fmt.Sprintf("Error during wait: %v", ctx.Err())
	}

	if seconds == 1 {
		return "Waited for 1 second."
	}
	return fmt.Sprintf("Waited for %d seconds.", seconds)
}

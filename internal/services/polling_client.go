package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Texts returned across the tool boundary.
const (
	AlreadyActiveMessage  = "A call is already active. Only one call at a time is supported."
	DefaultGoodbyeMessage = "Thank you for your response. Goodbye!"

	completedNoResponseMessage = "Call completed but no response was captured."
	failedMessage              = "Call failed. No response received."
	endedNoResponseMessage     = "Call ended without a response."
)

// CallController is the part of the call server a synchronous caller uses.
type CallController interface {
	IsActive() bool
	RequestCall(ctx context.Context, startMessage, endMessage string) (*CallReceipt, error)
	Snapshot() CallSnapshot
}

// PollingOptions configures a PollingClient.
type PollingOptions struct {
	Interval       time.Duration
	Timeout        time.Duration
	GoodbyeMessage string
}

// PollingClient places a call and blocks until it has a result.
type PollingClient struct {
	server   CallController
	interval time.Duration
	timeout  time.Duration
	goodbye  string
}

func NewPollingClient(server CallController, opts PollingOptions) *PollingClient {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.GoodbyeMessage == "" {
		opts.GoodbyeMessage = DefaultGoodbyeMessage
	}
	return &PollingClient{
		server:   server,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		goodbye:  opts.GoodbyeMessage,
	}
}

// MakeCallAndWait calls the target with message and waits for the answer.
// Timing out or cancelling ctx only stops the wait; the call keeps running.
func (p *PollingClient) MakeCallAndWait(ctx context.Context, message string) string {
	if p.server.IsActive() {
		return AlreadyActiveMessage
	}

	receipt, err := p.server.RequestCall(ctx, message, p.goodbye)
	if err != nil {
		return RequestCallErrorText(err)
	}

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		snap := p.server.Snapshot()
		if text, done := pollOutcome(receipt.ConnectionID, snap); done {
			return text
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			snap = p.server.Snapshot()
			if text, done := pollOutcome(receipt.ConnectionID, snap); done {
				return text
			}
			return fmt.Sprintf("Timed out after %s waiting for a response. Last call status: %s", p.timeout, snap.Status)
		case <-ctx.Done():
			return fmt.Sprintf("Stopped waiting for a response: %v. Last call status: %s", ctx.Err(), p.server.Snapshot().Status)
		}
	}
}

func pollOutcome(connectionID string, snap CallSnapshot) (string, bool) {
	switch {
	case snap.HasResponse && snap.Response != "":
		return "Response received: " + snap.Response, true
	case snap.Status == StatusCompleted:
		return completedNoResponseMessage, true
	case snap.Status == StatusFailed:
		return failedMessage, true
	case snap.Status == StatusIdle, snap.ConnectionID != connectionID:
		return endedNoResponseMessage, true
	}
	return "", false
}

// RequestCallErrorText flattens a RequestCall failure into tool output.
func RequestCallErrorText(err error) string {
	if errors.Is(err, ErrAlreadyActive) {
		return AlreadyActiveMessage
	}
	return "Failed to initiate call: " + err.Error()
}

package services

import (
	"context"
	"fmt"
	"time"
)

// CallRequest describes an outbound call to place.
type CallRequest struct {
	TargetNumber              string
	SourceNumber              string
	CallbackURL               string
	CognitiveServicesEndpoint string
}

// RecognizeRequest plays a prompt and captures one spoken answer.
type RecognizeRequest struct {
	TargetParticipant string
	Prompt            string
	Voice             string
	EndSilenceTimeout time.Duration
	OperationContext  string
}

// PlayRequest is a text-to-speech announcement to everyone on the call.
type PlayRequest struct {
	Text  string
	Voice string
}

// TelephonyProvider places calls and runs media operations on them. Media
// operations are asynchronous: their outcome arrives later as a webhook event.
type TelephonyProvider interface {
	CreateCall(ctx context.Context, req CallRequest) (connectionID string, err error)
	StartRecognize(ctx context.Context, connectionID string, req RecognizeRequest) error
	PlayToAll(ctx context.Context, connectionID string, req PlayRequest) error
	HangUp(ctx context.Context, connectionID string) error
}

// ProviderError wraps a failed provider API call.
type ProviderError struct {
	Op           string
	ConnectionID string
	Err          error
}

func (e *ProviderError) Error() string {
	if e.ConnectionID != "" {
		return fmt.Sprintf("telephony provider %s failed for call %s: %v", e.Op, e.ConnectionID, e.Err)
	}
	return fmt.Sprintf("telephony provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

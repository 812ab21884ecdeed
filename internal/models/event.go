package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Call automation event types delivered to the callback endpoint.
const (
	EventCallConnected      = "Microsoft.Communication.CallConnected"
	EventRecognizeCompleted = "Microsoft.Communication.RecognizeCompleted"
	EventRecognizeFailed    = "Microsoft.Communication.RecognizeFailed"
	EventPlayCompleted      = "Microsoft.Communication.PlayCompleted"
	EventPlayFailed         = "Microsoft.Communication.PlayFailed"
)

// RecognitionSpeech is the only recognition type that carries a transcript.
const RecognitionSpeech = "speech"

// Event is one call lifecycle notification. The concrete types below are
// the only implementations.
type Event interface {
	ConnectionID() string
	EventType() string
	isEvent()
}

type eventBase struct {
	Type         string
	CallConnID   string
	OperationCtx string
}

func (e eventBase) ConnectionID() string { return e.CallConnID }
func (e eventBase) EventType() string    { return e.Type }
func (eventBase) isEvent()               {}

// CallConnected is sent once the callee answers.
type CallConnected struct{ eventBase }

// RecognizeCompleted carries the recognition result.
type RecognizeCompleted struct {
	eventBase
	RecognitionType string
	Speech          string
}

// RecognizeFailed is sent when no input was recognised before the timeout.
type RecognizeFailed struct {
	eventBase
	Code    int
	Message string
}

// PlayCompleted is sent when a play-to-all prompt finished.
type PlayCompleted struct{ eventBase }

// PlayFailed is sent when a play-to-all prompt could not be played.
type PlayFailed struct{ eventBase }

// UnknownEvent is any event type this server does not act on.
type UnknownEvent struct{ eventBase }

// NewCallConnected builds a CallConnected event for a connection.
func NewCallConnected(connectionID string) CallConnected {
	return CallConnected{eventBase{Type: EventCallConnected, CallConnID: connectionID}}
}

// NewRecognizeCompleted builds a RecognizeCompleted event.
func NewRecognizeCompleted(connectionID, recognitionType, speech string) RecognizeCompleted {
	return RecognizeCompleted{
		eventBase:       eventBase{Type: EventRecognizeCompleted, CallConnID: connectionID},
		RecognitionType: recognitionType,
		Speech:          speech,
	}
}

// NewRecognizeFailed builds a RecognizeFailed event.
func NewRecognizeFailed(connectionID string) RecognizeFailed {
	return RecognizeFailed{eventBase: eventBase{Type: EventRecognizeFailed, CallConnID: connectionID}}
}

// NewPlayCompleted builds a PlayCompleted event.
func NewPlayCompleted(connectionID string) PlayCompleted {
	return PlayCompleted{eventBase{Type: EventPlayCompleted, CallConnID: connectionID}}
}

// NewPlayFailed builds a PlayFailed event.
func NewPlayFailed(connectionID string) PlayFailed {
	return PlayFailed{eventBase{Type: EventPlayFailed, CallConnID: connectionID}}
}

// NewUnknownEvent builds an event of a type the server ignores.
func NewUnknownEvent(eventType, connectionID string) UnknownEvent {
	return UnknownEvent{eventBase{Type: eventType, CallConnID: connectionID}}
}

// MalformedEventError describes a batch entry that could not be decoded.
type MalformedEventError struct {
	Index  int
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event at index %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed event at index %d: %s", e.Index, e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// ErrNotEventBatch is returned when the callback body is not a JSON array.
var ErrNotEventBatch = errors.New("callback body is not a JSON array of events")

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type eventData struct {
	CallConnectionID string `json:"callConnectionId"`
	OperationContext string `json:"operationContext"`
	RecognitionType  string `json:"recognitionType"`
	SpeechResult     *struct {
		Speech string `json:"speech"`
	} `json:"speechResult"`
	ResultInformation *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"resultInformation"`
}

// ParseEventBatch decodes a callback body. Entries that cannot be decoded
// are reported as *MalformedEventError and left out of the result; the
// remaining events keep their order.
func ParseEventBatch(body []byte) ([]Event, []error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, []error{fmt.Errorf("%w: %v", ErrNotEventBatch, err)}
	}

	events := make([]Event, 0, len(raw))
	var errs []error
	for i, entry := range raw {
		ev, err := parseEvent(i, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

func parseEvent(index int, entry json.RawMessage) (Event, error) {
	var ce cloudEvent
	if err := json.Unmarshal(entry, &ce); err != nil {
		return nil, &MalformedEventError{Index: index, Reason: "invalid envelope", Err: err}
	}
	if ce.Type == "" {
		return nil, &MalformedEventError{Index: index, Reason: "missing type"}
	}

	var data eventData
	if len(ce.Data) == 0 {
		return nil, &MalformedEventError{Index: index, Reason: "missing data"}
	}
	if err := json.Unmarshal(ce.Data, &data); err != nil {
		return nil, &MalformedEventError{Index: index, Reason: "invalid data", Err: err}
	}
	if data.CallConnectionID == "" {
		return nil, &MalformedEventError{Index: index, Reason: "missing callConnectionId"}
	}

	base := eventBase{Type: ce.Type, CallConnID: data.CallConnectionID, OperationCtx: data.OperationContext}
	switch ce.Type {
	case EventCallConnected:
		return CallConnected{base}, nil
	case EventRecognizeCompleted:
		ev := RecognizeCompleted{eventBase: base, RecognitionType: data.RecognitionType}
		if data.RecognitionType == RecognitionSpeech {
			if data.SpeechResult == nil {
				return nil, &MalformedEventError{Index: index, Reason: "speech recognition without speechResult"}
			}
			ev.Speech = data.SpeechResult.Speech
		}
		return ev, nil
	case EventRecognizeFailed:
		ev := RecognizeFailed{eventBase: base}
		if data.ResultInformation != nil {
			ev.Code = data.ResultInformation.Code
			ev.Message = data.ResultInformation.Message
		}
		return ev, nil
	case EventPlayCompleted:
		return PlayCompleted{base}, nil
	case EventPlayFailed:
		return PlayFailed{base}, nil
	default:
		return UnknownEvent{base}, nil
	}
}

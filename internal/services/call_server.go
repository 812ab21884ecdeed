package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
	"github.com/Ananth-NQI/voicecall-backend/internal/storage"
)

// RecognitionFailedResponse is stored as the response of a call whose
// speech recognition failed.
const RecognitionFailedResponse = "Recognition failed - no response received"

// CallExpiredResponse is stored when an active call outlives the maximum
// call duration without a result.
const CallExpiredResponse = "Call expired - no response received"

const (
	recognizeOperationContext = "OpenQuestionSpeech"
	endSilenceTimeout         = time.Second
	persistTimeout            = 5 * time.Second
)

// CallServerConfig holds the per-deployment call settings.
type CallServerConfig struct {
	TargetNumber              string
	SourceNumber              string
	CallbackURL               string
	CognitiveServicesEndpoint string
	Voice                     string
	ApologyMessage            string
	Debug                     bool
}

// CallReceipt is returned once an outbound call has been placed.
type CallReceipt struct {
	ConnectionID string `json:"call_connection_id"`
	StartMessage string `json:"start_message"`
	EndMessage   string `json:"end_message"`
}

// CallServer drives the call slot from call requests and provider events.
type CallServer struct {
	session  *CallSession
	provider TelephonyProvider
	store    storage.Store
	cfg      CallServerConfig
}

// NewCallServer creates a call server. store may be nil.
func NewCallServer(session *CallSession, provider TelephonyProvider, store storage.Store, cfg CallServerConfig) *CallServer {
	return &CallServer{
		session:  session,
		provider: provider,
		store:    store,
		cfg:      cfg,
	}
}

// Restore loads the persisted call slot into the session, if there is one.
func (s *CallServer) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	record, err := s.store.LoadCall(ctx)
	if errors.Is(err, storage.ErrNoCall) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.session.Restore(record)
}

// RequestCall places an outbound call to the configured target number.
func (s *CallServer) RequestCall(ctx context.Context, startMessage, endMessage string) (*CallReceipt, error) {
	req, err := s.session.StartCall(startMessage, endMessage)
	if err != nil {
		return nil, err
	}

	connectionID, err := s.provider.CreateCall(ctx, CallRequest{
		TargetNumber:              s.cfg.TargetNumber,
		SourceNumber:              s.cfg.SourceNumber,
		CallbackURL:               s.cfg.CallbackURL,
		CognitiveServicesEndpoint: s.cfg.CognitiveServicesEndpoint,
	})
	if err == nil && connectionID == "" {
		err = errors.New("provider returned no connection id")
	}
	if err != nil {
		s.session.AbortStart()
		log.Printf("❌ Failed to create call: %v", err)
		return nil, &ProviderError{Op: "create call", Err: err}
	}

	snap, err := s.session.MarkActive(connectionID)
	if err != nil {
		return nil, fmt.Errorf("activating call %s: %w", connectionID, err)
	}
	s.persist(snap)

	log.Printf("📞 Created call with connection id: %s", connectionID)
	return &CallReceipt{
		ConnectionID: connectionID,
		StartMessage: req.StartMessage,
		EndMessage:   req.EndMessage,
	}, nil
}

// HandleBatch processes one callback body. Malformed entries are logged and
// skipped; it only fails when the body is not an event array at all.
func (s *CallServer) HandleBatch(ctx context.Context, body []byte) (int, error) {
	events, errs := models.ParseEventBatch(body)
	for _, err := range errs {
		if errors.Is(err, models.ErrNotEventBatch) {
			return 0, err
		}
		log.Printf("⚠️  Skipping callback entry: %v", err)
	}

	for _, ev := range events {
		if err := s.HandleEvent(ctx, ev); err != nil {
			log.Printf("❌ %s for call %s: %v", ev.EventType(), ev.ConnectionID(), err)
		}
	}
	return len(events), nil
}

// HandleEvent advances the call slot for one provider event. Errors are
// provider failures; the slot is never changed by a failed provider call.
func (s *CallServer) HandleEvent(ctx context.Context, ev models.Event) error {
	snap := s.session.Snapshot()
	s.debugf("%s event received for call connection id: %s", ev.EventType(), ev.ConnectionID())

	switch e := ev.(type) {
	case models.CallConnected:
		if !s.acceptsMedia(snap, e) {
			return nil
		}
		s.debugf("Starting recognize with message: %s", snap.StartMessage)
		err := s.provider.StartRecognize(ctx, e.ConnectionID(), RecognizeRequest{
			TargetParticipant: s.cfg.TargetNumber,
			Prompt:            snap.StartMessage,
			Voice:             s.cfg.Voice,
			EndSilenceTimeout: endSilenceTimeout,
			OperationContext:  recognizeOperationContext,
		})
		return s.providerErr("start recognize", e.ConnectionID(), err)

	case models.RecognizeCompleted:
		if !s.acceptsMedia(snap, e) {
			return nil
		}
		if e.RecognitionType != models.RecognitionSpeech {
			log.Printf("⚠️  Ignoring %q recognition result for call %s", e.RecognitionType, e.ConnectionID())
			return nil
		}
		s.debugf("Recognition completed, text=%s", e.Speech)
		return s.finish(ctx, e.ConnectionID(), e.Speech, StatusCompleted, snap.EndMessage)

	case models.RecognizeFailed:
		if !s.acceptsMedia(snap, e) {
			return nil
		}
		log.Printf("🔇 Recognition failed for call %s (code %d): %s", e.ConnectionID(), e.Code, e.Message)
		return s.finish(ctx, e.ConnectionID(), RecognitionFailedResponse, StatusFailed, s.cfg.ApologyMessage)

	case models.PlayCompleted, models.PlayFailed:
		// A play event for an older connection belongs to a call nobody is
		// waiting on any more; hang it up as well.
		if ev.ConnectionID() == snap.ConnectionID && !snap.Status.IsTerminal() {
			log.Printf("⚠️  %s for call %s before a result was recorded, ignoring", ev.EventType(), ev.ConnectionID())
			return nil
		}
		log.Printf("📴 Terminating call %s", ev.ConnectionID())
		return s.providerErr("hang up", ev.ConnectionID(), s.provider.HangUp(ctx, ev.ConnectionID()))

	case models.UnknownEvent:
		s.debugf("Ignoring %s event for call %s", e.EventType(), e.ConnectionID())
		return nil

	default:
		log.Printf("⚠️  Unhandled event %T", ev)
		return nil
	}
}

func (s *CallServer) finish(ctx context.Context, connectionID, response string, status CallStatus, announcement string) error {
	snap, ok := s.session.StoreResponse(connectionID, response, status)
	if !ok {
		log.Printf("⚠️  Call %s no longer active (slot: %q %s), keeping the recorded response", connectionID, snap.ConnectionID, snap.Status)
		return nil
	}
	s.persist(snap)
	log.Printf("✅ Call %s %s", connectionID, snap.Status)

	err := s.provider.PlayToAll(ctx, connectionID, PlayRequest{Text: announcement, Voice: s.cfg.Voice})
	return s.providerErr("play", connectionID, err)
}

// ExpireStale fails the active call if it has been connected for longer
// than maxAge and hangs it up. It reports whether a call was expired.
func (s *CallServer) ExpireStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	snap := s.session.Snapshot()
	if snap.Status != StatusActive {
		return false, nil
	}

	expired, ok := s.session.Expire(snap.ConnectionID, time.Now().Add(-maxAge), CallExpiredResponse)
	if !ok {
		return false, nil
	}
	s.persist(expired)
	log.Printf("⏰ Call %s expired after %s without a result", expired.ConnectionID, maxAge)

	return true, s.providerErr("hang up", expired.ConnectionID, s.provider.HangUp(ctx, expired.ConnectionID))
}

// acceptsMedia reports whether ev belongs to the active call in snap.
func (s *CallServer) acceptsMedia(snap CallSnapshot, ev models.Event) bool {
	if snap.ConnectionID == "" || ev.ConnectionID() != snap.ConnectionID {
		log.Printf("⚠️  Ignoring %s for unknown call %s (current: %q)", ev.EventType(), ev.ConnectionID(), snap.ConnectionID)
		return false
	}
	if snap.Status != StatusActive {
		log.Printf("⚠️  Ignoring %s for call %s in state %s", ev.EventType(), ev.ConnectionID(), snap.Status)
		return false
	}
	return true
}

func (s *CallServer) providerErr(op, connectionID string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Op: op, ConnectionID: connectionID, Err: err}
}

func (s *CallServer) persist(snap CallSnapshot) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.SaveCall(ctx, snap.Record()); err != nil {
		log.Printf("⚠️  Failed to persist call %s: %v", snap.ConnectionID, err)
	}
}

func (s *CallServer) debugf(format string, args ...interface{}) {
	if s.cfg.Debug {
		log.Printf("🔍 "+format, args...)
	}
}

// IsActive reports whether a call is active or being placed.
func (s *CallServer) IsActive() bool { return s.session.IsActive() }

func (s *CallServer) Status() CallStatus { return s.session.Status() }

func (s *CallServer) Response() (string, bool) { return s.session.Response() }

func (s *CallServer) Snapshot() CallSnapshot { return s.session.Snapshot() }

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

type fakeTwilioAPI struct {
	created   []*twilioApi.CreateCallParams
	updated   map[string][]*twilioApi.UpdateCallParams
	status    string
	createErr error
}

func (f *fakeTwilioAPI) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.created = append(f.created, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	sid := "CA123"
	return &twilioApi.ApiV2010Call{Sid: &sid}, nil
}

func (f *fakeTwilioAPI) UpdateCall(sid string, params *twilioApi.UpdateCallParams) (*twilioApi.ApiV2010Call, error) {
	if f.updated == nil {
		f.updated = map[string][]*twilioApi.UpdateCallParams{}
	}
	f.updated[sid] = append(f.updated[sid], params)
	status := f.status
	if status == "" {
		status = "in-progress"
	}
	return &twilioApi.ApiV2010Call{Sid: &sid, Status: &status}, nil
}

func newTestTwilio(api *fakeTwilioAPI) *TwilioService {
	return &TwilioService{api: api, callbackURL: "https://calls.example.com/api/callbacks"}
}

func TestNewTwilioServiceRequiresCredentials(t *testing.T) {
	if _, err := NewTwilioService("", "token", "https://calls.example.com"); err == nil {
		t.Error("missing account sid: expected error")
	}
	if _, err := NewTwilioService("AC123", "", "https://calls.example.com"); err == nil {
		t.Error("missing auth token: expected error")
	}
}

func TestTwilioCreateCall(t *testing.T) {
	api := &fakeTwilioAPI{}
	svc := newTestTwilio(api)

	sid, err := svc.CreateCall(context.Background(), CallRequest{
		TargetNumber: "+15550002222",
		SourceNumber: "+15550001111",
	})
	if err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if sid != "CA123" {
		t.Errorf("sid: got %q", sid)
	}

	params := api.created[0]
	if *params.To != "+15550002222" || *params.From != "+15550001111" {
		t.Errorf("to/from: got %s / %s", *params.To, *params.From)
	}
	if *params.StatusCallback != "https://calls.example.com/api/callbacks/twilio/status" {
		t.Errorf("status callback: got %s", *params.StatusCallback)
	}
	if !strings.Contains(*params.Twiml, "<Pause") {
		t.Errorf("initial twiml: got %s", *params.Twiml)
	}
}

func TestTwilioCreateCallError(t *testing.T) {
	svc := newTestTwilio(&fakeTwilioAPI{createErr: errors.New("invalid number")})
	if _, err := svc.CreateCall(context.Background(), CallRequest{TargetNumber: "bad"}); err == nil {
		t.Fatal("CreateCall: expected error")
	}
}

func TestTwilioStartRecognizeAndPlay(t *testing.T) {
	api := &fakeTwilioAPI{}
	svc := newTestTwilio(api)
	ctx := context.Background()

	err := svc.StartRecognize(ctx, "CA123", RecognizeRequest{Prompt: "Hello, please confirm.", EndSilenceTimeout: time.Second})
	if err != nil {
		t.Fatalf("StartRecognize failed: %v", err)
	}
	if err := svc.PlayToAll(ctx, "CA123", PlayRequest{Text: "Thanks, bye."}); err != nil {
		t.Fatalf("PlayToAll failed: %v", err)
	}

	updates := api.updated["CA123"]
	if len(updates) != 2 {
		t.Fatalf("updates: got %d, want 2", len(updates))
	}
	gather := *updates[0].Twiml
	if !strings.Contains(gather, "Hello, please confirm.") || !strings.Contains(gather, "/api/callbacks/twilio/gather") {
		t.Errorf("gather twiml: got %s", gather)
	}
	play := *updates[1].Twiml
	if !strings.Contains(play, "Thanks, bye.") || !strings.Contains(play, "/api/callbacks/twilio/played") {
		t.Errorf("play twiml: got %s", play)
	}
}

func TestTwilioUpdateEndedCall(t *testing.T) {
	svc := newTestTwilio(&fakeTwilioAPI{status: "completed"})
	if err := svc.PlayToAll(context.Background(), "CA123", PlayRequest{Text: "bye"}); err == nil {
		t.Fatal("PlayToAll on a completed call: expected error")
	}
}

func TestTwilioHangUp(t *testing.T) {
	api := &fakeTwilioAPI{}
	svc := newTestTwilio(api)

	if err := svc.HangUp(context.Background(), "CA123"); err != nil {
		t.Fatalf("HangUp failed: %v", err)
	}
	params := api.updated["CA123"][0]
	if params.Status == nil || *params.Status != "completed" {
		t.Errorf("status: got %v", params.Status)
	}
}

func TestGatherTwiML(t *testing.T) {
	doc, err := GatherTwiML(RecognizeRequest{Prompt: "Say yes or no", Voice: "Polly.Joanna", EndSilenceTimeout: 2 * time.Second}, "https://x/gather")
	if err != nil {
		t.Fatalf("GatherTwiML failed: %v", err)
	}
	for _, want := range []string{"<Gather", "speech", "https://x/gather", "<Say", "Say yes or no", "Polly.Joanna"} {
		if !strings.Contains(doc, want) {
			t.Errorf("GatherTwiML missing %q: %s", want, doc)
		}
	}
}

func TestTwilioVoice(t *testing.T) {
	tests := map[string]string{
		"Polly.Joanna":      "Polly.Joanna",
		"Google.en-US-Std":  "Google.en-US-Std",
		"en-US-NancyNeural": "alice",
		"":                  "alice",
	}
	for in, want := range tests {
		if got := twilioVoice(in); got != want {
			t.Errorf("twilioVoice(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTwilioEvents(t *testing.T) {
	if _, ok := TwilioStatusEvent("CA1", "in-progress").(models.CallConnected); !ok {
		t.Error("in-progress should map to CallConnected")
	}
	ev := TwilioStatusEvent("CA1", "no-answer")
	if u, ok := ev.(models.UnknownEvent); !ok || u.EventType() != "Twilio.CallStatus.no-answer" {
		t.Errorf("no-answer: got %#v", ev)
	}

	done, ok := TwilioGatherEvent("CA1", "yes please").(models.RecognizeCompleted)
	if !ok || done.Speech != "yes please" || done.RecognitionType != models.RecognitionSpeech {
		t.Errorf("gather with speech: got %#v", done)
	}
	if _, ok := TwilioGatherEvent("CA1", "  ").(models.RecognizeFailed); !ok {
		t.Error("empty gather should map to RecognizeFailed")
	}
	if ev := TwilioPlayedEvent("CA1"); ev.ConnectionID() != "CA1" {
		t.Errorf("played: got %#v", ev)
	}
}

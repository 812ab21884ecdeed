package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

// Twilio callback routes, relative to the call callback URL.
const (
	TwilioStatusPath = "/twilio/status"
	TwilioGatherPath = "/twilio/gather"
	TwilioPlayedPath = "/twilio/played"
)

const twilioDefaultVoice = "alice"

// twilioCallAPI is the subset of the Twilio REST API used for voice calls.
type twilioCallAPI interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
	UpdateCall(sid string, params *twilioApi.UpdateCallParams) (*twilioApi.ApiV2010Call, error)
}

// TwilioService places and drives calls through Twilio Programmable Voice.
// Recognition runs as a <Gather input="speech">; Twilio's callbacks are
// translated into call events by the Twilio*Event functions.
type TwilioService struct {
	api         twilioCallAPI
	callbackURL string
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(accountSid, authToken, callbackURL string) (*TwilioService, error) {
	if accountSid == "" || authToken == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		api:         client.Api,
		callbackURL: strings.TrimRight(callbackURL, "/"),
	}, nil
}

// CreateCall dials the target and parks the call until it is answered.
func (t *TwilioService) CreateCall(ctx context.Context, req CallRequest) (string, error) {
	hold, err := HoldTwiML()
	if err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.TargetNumber)
	params.SetFrom(req.SourceNumber)
	params.SetTwiml(hold)
	params.SetStatusCallback(t.callbackURL + TwilioStatusPath)
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"answered", "completed"})

	resp, err := t.api.CreateCall(params)
	if err != nil {
		log.Printf("❌ Failed to create Twilio call: %v", err)
		return "", err
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio returned no call sid")
	}

	log.Printf("✅ Twilio call created! SID: %s", *resp.Sid)
	return *resp.Sid, nil
}

func (t *TwilioService) StartRecognize(ctx context.Context, callSid string, req RecognizeRequest) error {
	doc, err := GatherTwiML(req, t.callbackURL+TwilioGatherPath)
	if err != nil {
		return err
	}
	return t.updateTwiml(callSid, doc)
}

func (t *TwilioService) PlayToAll(ctx context.Context, callSid string, req PlayRequest) error {
	doc, err := PlayTwiML(req, t.callbackURL+TwilioPlayedPath)
	if err != nil {
		return err
	}
	return t.updateTwiml(callSid, doc)
}

// HangUp completes the call, which disconnects every participant.
func (t *TwilioService) HangUp(ctx context.Context, callSid string) error {
	params := &twilioApi.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := t.api.UpdateCall(callSid, params); err != nil {
		return fmt.Errorf("failed to hang up call: %w", err)
	}
	return nil
}

func (t *TwilioService) updateTwiml(callSid, doc string) error {
	params := &twilioApi.UpdateCallParams{}
	params.SetTwiml(doc)

	resp, err := t.api.UpdateCall(callSid, params)
	if err != nil {
		return fmt.Errorf("failed to update call: %w", err)
	}
	if resp.Status != nil && (*resp.Status == "completed" || *resp.Status == "canceled") {
		return fmt.Errorf("call %s already %s", callSid, *resp.Status)
	}
	return nil
}

// HoldTwiML keeps a call open while the server decides what to play next.
func HoldTwiML() (string, error) {
	return twiml.Voice([]twiml.Element{&twiml.VoicePause{Length: "60"}})
}

// GatherTwiML speaks the prompt and captures one spoken answer. An empty
// result is posted to action as well so a silent callee fails recognition.
func GatherTwiML(req RecognizeRequest, action string) (string, error) {
	speechTimeout := "auto"
	if secs := int(req.EndSilenceTimeout.Seconds()); secs > 0 {
		speechTimeout = fmt.Sprint(secs)
	}

	gather := &twiml.VoiceGather{
		Input:               "speech",
		SpeechTimeout:       speechTimeout,
		Action:              action,
		Method:              "POST",
		ActionOnEmptyResult: "true",
		InnerElements: []twiml.Element{
			&twiml.VoiceSay{Message: req.Prompt, Voice: twilioVoice(req.Voice)},
		},
	}
	return twiml.Voice([]twiml.Element{gather})
}

// PlayTwiML speaks text and then reports completion to played.
func PlayTwiML(req PlayRequest, played string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: req.Text, Voice: twilioVoice(req.Voice)},
		&twiml.VoiceRedirect{Url: played, Method: "POST"},
	})
}

// twilioVoice keeps Polly and Google voices and maps anything else (such as
// Azure neural voice names) to Twilio's default voice.
func twilioVoice(voice string) string {
	if strings.HasPrefix(voice, "Polly.") || strings.HasPrefix(voice, "Google.") {
		return voice
	}
	return twilioDefaultVoice
}

// TwilioStatusEvent translates a status callback. Only an answered call
// maps to a known event.
func TwilioStatusEvent(callSid, callStatus string) models.Event {
	if callStatus == "in-progress" {
		return models.NewCallConnected(callSid)
	}
	return models.NewUnknownEvent("Twilio.CallStatus."+callStatus, callSid)
}

// TwilioGatherEvent translates a <Gather> action callback.
func TwilioGatherEvent(callSid, speechResult string) models.Event {
	if strings.TrimSpace(speechResult) == "" {
		return models.NewRecognizeFailed(callSid)
	}
	return models.NewRecognizeCompleted(callSid, models.RecognitionSpeech, speechResult)
}

// TwilioPlayedEvent translates the redirect issued after an announcement.
func TwilioPlayedEvent(callSid string) models.Event {
	return models.NewPlayCompleted(callSid)
}

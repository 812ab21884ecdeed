package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	acsAPIVersion     = "2023-10-15"
	acsDefaultTimeout = 15 * time.Second
)

// ACSProvider drives calls through the Azure Communication Services Call
// Automation REST API.
type ACSProvider struct {
	endpoint  string // scheme://host, no trailing slash
	host      string
	accessKey []byte
	timeout   time.Duration
	now       func() time.Time
}

// ACSError is a non-2xx response from the Call Automation API.
type ACSError struct {
	StatusCode int
	Body       string
}

func (e *ACSError) Error() string {
	return fmt.Sprintf("acs returned %d: %s", e.StatusCode, e.Body)
}

// ParseACSConnectionString splits "endpoint=https://...;accesskey=..." into
// the endpoint URL and the decoded access key.
func ParseACSConnectionString(connectionString string) (*url.URL, []byte, error) {
	var endpoint, accessKey string
	for _, part := range strings.Split(connectionString, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "endpoint":
			endpoint = value
		case "accesskey":
			accessKey = value
		}
	}
	if endpoint == "" || accessKey == "" {
		return nil, nil, errors.New("connection string needs endpoint and accesskey")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}
	key, err := base64.StdEncoding.DecodeString(accessKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid access key: %w", err)
	}
	return u, key, nil
}

// NewACSProvider creates a provider from an ACS resource connection string.
func NewACSProvider(connectionString string) (*ACSProvider, error) {
	u, key, err := ParseACSConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	return &ACSProvider{
		endpoint:  u.Scheme + "://" + u.Host,
		host:      u.Host,
		accessKey: key,
		timeout:   acsDefaultTimeout,
		now:       time.Now,
	}, nil
}

type acsPhoneNumber struct {
	Value string `json:"value"`
}

type acsIdentifier struct {
	Kind        string         `json:"kind"`
	RawID       string         `json:"rawId,omitempty"`
	PhoneNumber acsPhoneNumber `json:"phoneNumber"`
}

func phoneIdentifier(number string) acsIdentifier {
	return acsIdentifier{Kind: "phoneNumber", RawID: "4:" + number, PhoneNumber: acsPhoneNumber{Value: number}}
}

type acsTextSource struct {
	Text      string `json:"text"`
	VoiceName string `json:"voiceName,omitempty"`
}

type acsPlaySource struct {
	Kind string        `json:"kind"`
	Text acsTextSource `json:"text"`
}

func textSource(text, voice string) acsPlaySource {
	return acsPlaySource{Kind: "text", Text: acsTextSource{Text: text, VoiceName: voice}}
}

type acsCreateCallRequest struct {
	Targets                 []acsIdentifier `json:"targets"`
	SourceCallerIDNumber    acsPhoneNumber  `json:"sourceCallerIdNumber"`
	CallbackURI             string          `json:"callbackUri"`
	CallIntelligenceOptions *struct {
		CognitiveServicesEndpoint string `json:"cognitiveServicesEndpoint"`
	} `json:"callIntelligenceOptions,omitempty"`
}

type acsCallConnection struct {
	CallConnectionID string `json:"callConnectionId"`
}

type acsRecognizeRequest struct {
	RecognizeInputType          string        `json:"recognizeInputType"`
	PlayPrompt                  acsPlaySource `json:"playPrompt"`
	InterruptCallMediaOperation bool          `json:"interruptCallMediaOperation"`
	OperationContext            string        `json:"operationContext,omitempty"`
	RecognizeOptions            struct {
		TargetParticipant acsIdentifier `json:"targetParticipant"`
		SpeechOptions     struct {
			EndSilenceTimeoutInMs int64 `json:"endSilenceTimeoutInMs"`
		} `json:"speechOptions"`
	} `json:"recognizeOptions"`
}

type acsPlayRequest struct {
	PlaySources []acsPlaySource `json:"playSources"`
	PlayOptions struct {
		Loop bool `json:"loop"`
	} `json:"playOptions"`
}

func (a *ACSProvider) CreateCall(ctx context.Context, req CallRequest) (string, error) {
	body := acsCreateCallRequest{
		Targets:              []acsIdentifier{phoneIdentifier(req.TargetNumber)},
		SourceCallerIDNumber: acsPhoneNumber{Value: req.SourceNumber},
		CallbackURI:          req.CallbackURL,
	}
	if req.CognitiveServicesEndpoint != "" {
		body.CallIntelligenceOptions = &struct {
			CognitiveServicesEndpoint string `json:"cognitiveServicesEndpoint"`
		}{req.CognitiveServicesEndpoint}
	}

	var conn acsCallConnection
	if err := a.post(ctx, "/calling/callConnections", body, &conn); err != nil {
		return "", err
	}
	return conn.CallConnectionID, nil
}

func (a *ACSProvider) StartRecognize(ctx context.Context, connectionID string, req RecognizeRequest) error {
	body := acsRecognizeRequest{
		RecognizeInputType: "speech",
		PlayPrompt:         textSource(req.Prompt, req.Voice),
		OperationContext:   req.OperationContext,
	}
	body.RecognizeOptions.TargetParticipant = phoneIdentifier(req.TargetParticipant)
	body.RecognizeOptions.SpeechOptions.EndSilenceTimeoutInMs = req.EndSilenceTimeout.Milliseconds()

	return a.post(ctx, connectionPath(connectionID, "recognize"), body, nil)
}

func (a *ACSProvider) PlayToAll(ctx context.Context, connectionID string, req PlayRequest) error {
	body := acsPlayRequest{PlaySources: []acsPlaySource{textSource(req.Text, req.Voice)}}
	return a.post(ctx, connectionPath(connectionID, "play"), body, nil)
}

// HangUp terminates the call for every participant.
func (a *ACSProvider) HangUp(ctx context.Context, connectionID string) error {
	return a.post(ctx, connectionPath(connectionID, "terminate"), nil, nil)
}

func connectionPath(connectionID, action string) string {
	return "/calling/callConnections/" + url.PathEscape(connectionID) + ":" + action
}

func (a *ACSProvider) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	pathAndQuery := path + "?api-version=" + acsAPIVersion
	date := a.now().UTC().Format(http.TimeFormat)
	contentHash, signature := a.sign(http.MethodPost, pathAndQuery, date, body)

	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	agent := fiber.Post(a.endpoint + pathAndQuery)
	agent.Set("x-ms-date", date)
	agent.Set("x-ms-content-sha256", contentHash)
	agent.Set(fiber.HeaderAuthorization, "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
	agent.Set("Repeatability-Request-ID", uuid.NewString())
	agent.Set("Repeatability-First-Sent", date)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(body)
	agent.Timeout(timeout)

	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request to %s failed: %w", path, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		log.Printf("❌ ACS %s returned %d", path, code)
		return &ACSError{StatusCode: code, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

// sign computes the content hash and HMAC-SHA256 request signature:
// METHOD\npath?query\ndate;host;contentHash keyed with the access key.
func (a *ACSProvider) sign(method, pathAndQuery, date string, body []byte) (contentHash, signature string) {
	sum := sha256.Sum256(body)
	contentHash = base64.StdEncoding.EncodeToString(sum[:])

	stringToSign := method + "\n" + pathAndQuery + "\n" + date + ";" + a.host + ";" + contentHash

	h := hmac.New(sha256.New, a.accessKey)
	h.Write([]byte(stringToSign))
	return contentHash, base64.StdEncoding.EncodeToString(h.Sum(nil))
}

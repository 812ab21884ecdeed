package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Ananth-NQI/voicecall-backend/internal/models"
)

func fastPolling() PollingOptions {
	return PollingOptions{Interval: 5 * time.Millisecond, Timeout: 500 * time.Millisecond}
}

func TestMakeCallAndWaitReturnsResponse(t *testing.T) {
	provider := &fakeProvider{}
	server, _ := newTestServer(provider)
	client := NewPollingClient(server, fastPolling())

	go func() {
		// Answer once the call has been placed.
		for i := 0; i < 100; i++ {
			if snap := server.Snapshot(); snap.Status == StatusActive {
				ctx := context.Background()
				server.HandleEvent(ctx, models.NewCallConnected(snap.ConnectionID))
				server.HandleEvent(ctx, models.NewRecognizeCompleted(snap.ConnectionID, models.RecognitionSpeech, "yes, approved"))
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	got := client.MakeCallAndWait(context.Background(), "Hello, please confirm.")
	if got != "Response received: yes, approved" {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}

	plays := provider.CallsOf("play")
	if len(plays) != 1 || plays[0].Play.Text != DefaultGoodbyeMessage {
		t.Errorf("goodbye announcement: got %+v", plays)
	}
}

func TestMakeCallAndWaitFailedRecognition(t *testing.T) {
	provider := &fakeProvider{}
	server, _ := newTestServer(provider)
	client := NewPollingClient(server, fastPolling())

	go func() {
		for i := 0; i < 100; i++ {
			if snap := server.Snapshot(); snap.Status == StatusActive {
				server.HandleEvent(context.Background(), models.NewRecognizeFailed(snap.ConnectionID))
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	got := client.MakeCallAndWait(context.Background(), "hi")
	if got != "Response received: "+RecognitionFailedResponse {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
}

func TestMakeCallAndWaitReturnsWithinOneInterval(t *testing.T) {
	const interval = 200 * time.Millisecond
	server, _ := newTestServer(&fakeProvider{})
	client := NewPollingClient(server, PollingOptions{Interval: interval, Timeout: 5 * time.Second})

	stored := make(chan time.Time, 1)
	go func() {
		for i := 0; i < 500; i++ {
			if snap := server.Snapshot(); snap.Status == StatusActive {
				// Land between two ticks.
				time.Sleep(interval + interval/3)
				server.HandleEvent(context.Background(), models.NewRecognizeCompleted(snap.ConnectionID, models.RecognitionSpeech, "yes"))
				stored <- time.Now()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	got := client.MakeCallAndWait(context.Background(), "hi")
	returned := time.Now()
	if got != "Response received: yes" {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
	select {
	case at := <-stored:
		// Allow for scheduling jitter on top of one interval.
		if lag := returned.Sub(at); lag > interval+50*time.Millisecond {
			t.Errorf("returned %s after the response was stored, want at most %s", lag, interval)
		}
	case <-time.After(time.Second):
		t.Fatal("response was never stored")
	}
}

func TestMakeCallAndWaitTimesOut(t *testing.T) {
	server, _ := newTestServer(&fakeProvider{})
	client := NewPollingClient(server, PollingOptions{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})

	got := client.MakeCallAndWait(context.Background(), "hi")
	if !strings.HasPrefix(got, "Timed out after 30ms") || !strings.HasSuffix(got, "Last call status: Active") {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
	// The call keeps running after the wait gives up.
	if server.Status() != StatusActive {
		t.Errorf("Status: got %s, want Active", server.Status())
	}
}

func TestMakeCallAndWaitWhileActive(t *testing.T) {
	provider := &fakeProvider{}
	server, _ := newTestServer(provider)
	startTestCall(t, server)
	client := NewPollingClient(server, fastPolling())

	if got := client.MakeCallAndWait(context.Background(), "hi"); got != AlreadyActiveMessage {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
	if n := len(provider.CallsOf("create")); n != 1 {
		t.Errorf("create calls: got %d, want 1", n)
	}
}

func TestMakeCallAndWaitProviderFailure(t *testing.T) {
	server, _ := newTestServer(&fakeProvider{createErr: errors.New("401 unauthorized")})
	client := NewPollingClient(server, fastPolling())

	got := client.MakeCallAndWait(context.Background(), "hi")
	if !strings.HasPrefix(got, "Failed to initiate call: ") || !strings.Contains(got, "401 unauthorized") {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
}

func TestMakeCallAndWaitContextCancelled(t *testing.T) {
	server, _ := newTestServer(&fakeProvider{})
	client := NewPollingClient(server, PollingOptions{Interval: 5 * time.Millisecond, Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := client.MakeCallAndWait(ctx, "hi")
	if !strings.HasPrefix(got, "Stopped waiting for a response: ") || !strings.HasSuffix(got, "Last call status: Active") {
		t.Fatalf("MakeCallAndWait: got %q", got)
	}
}

func TestPollOutcome(t *testing.T) {
	tests := []struct {
		name     string
		snap     CallSnapshot
		want     string
		wantDone bool
	}{
		{
			name:     "response",
			snap:     CallSnapshot{ConnectionID: "conn-1", Status: StatusCompleted, Response: "yes", HasResponse: true},
			want:     "Response received: yes",
			wantDone: true,
		},
		{
			name:     "completed without response",
			snap:     CallSnapshot{ConnectionID: "conn-1", Status: StatusCompleted, HasResponse: true},
			want:     completedNoResponseMessage,
			wantDone: true,
		},
		{
			name:     "failed without response",
			snap:     CallSnapshot{ConnectionID: "conn-1", Status: StatusFailed},
			want:     failedMessage,
			wantDone: true,
		},
		{
			name:     "idle",
			snap:     CallSnapshot{Status: StatusIdle},
			want:     endedNoResponseMessage,
			wantDone: true,
		},
		{
			name:     "replaced by another call",
			snap:     CallSnapshot{ConnectionID: "conn-2", Status: StatusActive},
			want:     endedNoResponseMessage,
			wantDone: true,
		},
		{
			name: "still active",
			snap: CallSnapshot{ConnectionID: "conn-1", Status: StatusActive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, done := pollOutcome("conn-1", tt.snap)
			if got != tt.want || done != tt.wantDone {
				t.Errorf("pollOutcome = %q, %v; want %q, %v", got, done, tt.want, tt.wantDone)
			}
		})
	}
}

func TestRequestCallErrorText(t *testing.T) {
	if got := RequestCallErrorText(ErrAlreadyActive); got != AlreadyActiveMessage {
		t.Errorf("already active: got %q", got)
	}
	err := &ProviderError{Op: "create call", Err: errors.New("boom")}
	if got := RequestCallErrorText(err); got != "Failed to initiate call: "+err.Error() {
		t.Errorf("provider error: got %q", got)
	}
}

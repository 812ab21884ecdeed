package services

import (
	"context"
	"fmt"
	"sync"
)

type providerCall struct {
	Op           string
	ConnectionID string
	Recognize    RecognizeRequest
	Play         PlayRequest
	Create       CallRequest
}

// fakeProvider records every call and hands out sequential connection ids.
type fakeProvider struct {
	mu        sync.Mutex
	calls     []providerCall
	nextID    int
	createErr error
	mediaErr  error
	// createHook runs inside CreateCall before it returns.
	createHook func()
}

func (f *fakeProvider) CreateCall(ctx context.Context, req CallRequest) (string, error) {
	if f.createHook != nil {
		f.createHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Op: "create", Create: req})
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	return fmt.Sprintf("conn-%d", f.nextID), nil
}

func (f *fakeProvider) StartRecognize(ctx context.Context, connectionID string, req RecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Op: "recognize", ConnectionID: connectionID, Recognize: req})
	return f.mediaErr
}

func (f *fakeProvider) PlayToAll(ctx context.Context, connectionID string, req PlayRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Op: "play", ConnectionID: connectionID, Play: req})
	return f.mediaErr
}

func (f *fakeProvider) HangUp(ctx context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Op: "hangup", ConnectionID: connectionID})
	return f.mediaErr
}

func (f *fakeProvider) Calls() []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providerCall(nil), f.calls...)
}

func (f *fakeProvider) CallsOf(op string) []providerCall {
	var out []providerCall
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

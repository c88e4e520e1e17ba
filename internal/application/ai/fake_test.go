package ai

import (
	"context"
	"sync"

	domai "github.com/bryanwahyu/contract-analysis/internal/domain/ai"
)

// fakeClient replays canned replies and records requests.
type fakeClient struct {
	mu       sync.Mutex
	replies  []string
	err      error
	model    string
	requests []domai.Request
}

func (f *fakeClient) Complete(_ context.Context, req domai.Request) (*domai.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	content := ""
	if len(f.replies) > 0 {
		content = f.replies[0]
		f.replies = f.replies[1:]
	}
	model := f.model
	if model == "" {
		model = "fake-model"
	}
	return &domai.Response{Content: content, Model: model}, nil
}

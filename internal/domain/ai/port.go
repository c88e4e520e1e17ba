package ai

import "context"

// Request is one chat turn: a fixed system prompt and the user content.
type Request struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Response carries the raw text answer and the model that produced it.
type Response struct {
	Content string
	Model   string
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
